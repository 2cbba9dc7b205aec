package transform

import (
	"reflect"
	"testing"

	"github.com/google/uuid"

	"github.com/jacoelho/dq/internal/dq/query"
	"github.com/jacoelho/dq/internal/dq/vars"
)

func applyOne(t *testing.T, spec string, in any) []any {
	t.Helper()
	p := NewPipeline(nil, nil, nil)
	return p.Apply([]any{in}, map[query.Stage][]string{
		query.StageTransform: {spec},
	}, vars.New())
}

func TestBuiltinTransforms(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		spec string
		in   any
		want []any
	}{
		{
			name: "uppercase",
			spec: "uppercase",
			in:   "hello",
			want: []any{"HELLO"},
		},
		{
			name: "lowercase",
			spec: "lowercase",
			in:   "HeLLo",
			want: []any{"hello"},
		},
		{
			name: "titlecase",
			spec: "titlecase",
			in:   "hello big world",
			want: []any{"Hello Big World"},
		},
		{
			name: "trim",
			spec: "trim",
			in:   "  padded \n",
			want: []any{"padded"},
		},
		{
			name: "reverse is rune safe",
			spec: "reverse",
			in:   "héllo",
			want: []any{"olléh"},
		},
		{
			name: "base64",
			spec: "base64",
			in:   "hello",
			want: []any{"aGVsbG8="},
		},
		{
			name: "base64decode",
			spec: "base64decode",
			in:   "aGVsbG8=",
			want: []any{"hello"},
		},
		{
			name: "base64decode drops bad input",
			spec: "base64decode",
			in:   "!!! not base64 !!!",
			want: []any{},
		},
		{
			name: "urlencode",
			spec: "urlencode",
			in:   "a b&c",
			want: []any{"a+b%26c"},
		},
		{
			name: "urldecode",
			spec: "urldecode",
			in:   "a+b%26c",
			want: []any{"a b&c"},
		},
		{
			name: "html2text collapses whitespace",
			spec: "html2text",
			in:   "<p>Hello <b>big</b>\n   world</p>",
			want: []any{"Hello big world"},
		},
		{
			name: "md5",
			spec: "md5",
			in:   "hello",
			want: []any{"5d41402abc4b2a76b9719d911017c592"},
		},
		{
			name: "sha1",
			spec: "sha1",
			in:   "hello",
			want: []any{"aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d"},
		},
		{
			name: "sha256",
			spec: "sha256",
			in:   "hello",
			want: []any{"2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"},
		},
		{
			name: "json literal",
			spec: "json",
			in:   `{"a": 1}`,
			want: []any{map[string]any{"a": 1.0}},
		},
		{
			name: "json drops unparsable input",
			spec: "json",
			in:   "{nope",
			want: []any{},
		},
		{
			name: "json named object assignment",
			spec: "json:data",
			in:   `var other = 1; var data = {"a": [1, 2], "s": "x;y"}; doSomething();`,
			want: []any{map[string]any{"a": []any{1.0, 2.0}, "s": "x;y"}},
		},
		{
			name: "json named bare token",
			spec: "json:count",
			in:   "var count = 42;",
			want: []any{42.0},
		},
		{
			name: "json named single quoted string",
			spec: "json:title",
			in:   "var title = 'hi there';",
			want: []any{"hi there"},
		},
		{
			name: "json name requires word boundary",
			spec: "json:x",
			in:   "var max = 9;",
			want: []any{},
		},
		{
			name: "yaml mapping",
			spec: "yaml",
			in:   "a: one\nb: two\n",
			want: []any{map[string]any{"a": "one", "b": "two"}},
		},
		{
			name: "date default rfc3339",
			spec: "date",
			in:   "2021-03-04T11:22:33Z",
			want: []any{"2021-03-04T11:22:33Z"},
		},
		{
			name: "date custom layout",
			spec: "date:2006-01-02",
			in:   "2021-03-04T11:22:33Z",
			want: []any{"2021-03-04"},
		},
		{
			name: "date drops unparsable input",
			spec: "date",
			in:   "not a date",
			want: []any{},
		},
		{
			name: "markdown",
			spec: "markdown",
			in:   "hello **world**",
			want: []any{"<p>hello <strong>world</strong></p>"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := applyOne(t, tt.spec, tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Apply(%q, %v) = %#v, want %#v", tt.spec, tt.in, got, tt.want)
			}
		})
	}
}

func TestUUIDTransform(t *testing.T) {
	t.Parallel()

	got := applyOne(t, "uuid", "ignored")
	if len(got) != 1 {
		t.Fatalf("got %d values, want 1", len(got))
	}
	id, ok := got[0].(string)
	if !ok {
		t.Fatalf("uuid type = %T, want string", got[0])
	}
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("uuid %q does not parse: %v", id, err)
	}
}

func TestRoundTrips(t *testing.T) {
	t.Parallel()

	inputs := []string{"", "a", "hello world", "héllo ✓ line\nbreak"}
	for _, in := range inputs {
		reversed := applyOne(t, "reverse", in)
		back := applyOne(t, "reverse", reversed[0])
		if back[0] != in {
			t.Errorf("reverse twice of %q = %q", in, back[0])
		}

		encoded := applyOne(t, "base64", in)
		decoded := applyOne(t, "base64decode", encoded[0])
		if decoded[0] != in {
			t.Errorf("base64 round trip of %q = %q", in, decoded[0])
		}
	}
}

func TestRegexpTransform(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		spec string
		in   string
		want string
	}{
		{
			name: "plain replacement",
			spec: `regexp:/world/there/`,
			in:   "hello world",
			want: "hello there",
		},
		{
			name: "capture group",
			spec: `regexp:/(\w+)@(\w+)/$2 at $1/`,
			in:   "user@example",
			want: "example at user",
		},
		{
			name: "escaped slash in pattern",
			spec: `regexp:/a\/b/x/`,
			in:   "a/b",
			want: "x",
		},
		{
			name: "all sentinel spans newlines",
			spec: `regexp:/start\ALLend/cut/`,
			in:   "start one\ntwo\nend",
			want: "cut",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := applyOne(t, tt.spec, tt.in)
			want := []any{tt.want}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("Apply(%q, %q) = %#v, want %#v", tt.spec, tt.in, got, want)
			}
		})
	}

	t.Run("bad pattern keeps original", func(t *testing.T) {
		t.Parallel()
		got := applyOne(t, `regexp:/(/x/`, "unchanged")
		if !reflect.DeepEqual(got, []any{"unchanged"}) {
			t.Errorf("got %#v, want original", got)
		}
	})

	t.Run("malformed spec keeps original", func(t *testing.T) {
		t.Parallel()
		got := applyOne(t, `regexp:nodelimiters`, "unchanged")
		if !reflect.DeepEqual(got, []any{"unchanged"}) {
			t.Errorf("got %#v, want original", got)
		}
	})
}
