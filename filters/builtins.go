package filters

import "github.com/deicod/jinjac/schema"

func builtins() []Def {
	str := schema.StringType
	text := func(name string, params ...Param) Def {
		return Def{Name: name, Input: Display, Params: params, Output: str}
	}
	width := Param{Name: "width", Class: Integer}

	return []Def{
		{Name: "abs", Input: Number},
		text("capitalize"),
		text("center", width),
		{Name: "e", Input: Display, Params: []Param{{Name: "escaper", Class: Text, Optional: true}}, Output: str, Escapes: true},
		{Name: "escape", Input: Display, Params: []Param{{Name: "escaper", Class: Text, Optional: true}}, Output: str, Escapes: true},
		{Name: "filesizeformat", Input: Number, Output: str},
		{Name: "fmt", Input: AnyValue, Params: []Param{{Name: "format", Class: Text}}, Output: str},
		{Name: "format", Input: Text, Variadic: true, Output: str},
		text("indent", width),
		{Name: "into_f64", Input: Number, Output: schema.FloatType},
		{Name: "into_isize", Input: Number, Output: schema.IntType},
		{Name: "join", Input: Iterable, Params: []Param{{Name: "separator", Class: Text}}, Output: str},
		{Name: "json", Input: AnyValue, Params: []Param{{Name: "indent", Class: Integer, Optional: true}}, Output: str},
		{Name: "length", Input: Iterable, Output: schema.IntType},
		{Name: "linebreaks", Input: Display, Output: str, Escapes: true},
		{Name: "linebreaksbr", Input: Display, Output: str, Escapes: true},
		text("lower"),
		text("lowercase"),
		{Name: "paragraphbreaks", Input: Display, Output: str, Escapes: true},
		{Name: "safe", Input: AnyValue, Safe: true},
		text("title"),
		text("trim"),
		text("truncate", Param{Name: "length", Class: Integer}),
		text("upper"),
		text("uppercase"),
		text("urlencode"),
		text("urlencode_strict"),
		{Name: "wordcount", Input: Display, Output: schema.IntType},
	}
}
