package build

import "testing"

func TestFilterSource(t *testing.T) {
	t.Parallel()

	source := "class Main {\n  System.out.println(\"debug\");\n  int x = 1;\n  System.err.print(x);\n}\n"
	cases := []struct {
		name   string
		ignore []string
		want   string
	}{
		{name: "no rules", ignore: nil, want: source},
		{name: "empty rule", ignore: []string{""}, want: source},
		{
			name:   "single rule",
			ignore: []string{"System.out.println"},
			want:   "class Main {\n  int x = 1;\n  System.err.print(x);\n}\n",
		},
		{
			name:   "several rules",
			ignore: []string{"System.out", "System.err"},
			want:   "class Main {\n  int x = 1;\n}\n",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := FilterSource(source, tc.ignore); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}
