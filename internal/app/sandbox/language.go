// Package sandbox executes untrusted submissions in isolated processes with
// hard wall-clock limits. It is best-effort process isolation, not a security
// boundary; the grader's static pre-checks are the first line of defense.
package sandbox

// LanguageSpec defines how to materialize and run a submission for one
// language. The set of specs is closed: interpreted languages run the source
// directly, compiled ones build a binary first. Command templates use {src}
// and {bin} placeholders.
type LanguageSpec struct {
	ID         string
	Name       string
	SourceFile string
	BinaryFile string
	Compiled   bool
	CompileCmd []string
	RunCmd     []string
}

var (
	Python = LanguageSpec{
		ID:         "python",
		Name:       "Python",
		SourceFile: "main.py",
		RunCmd:     []string{"python3", "{src}"},
	}

	JavaScript = LanguageSpec{
		ID:         "javascript",
		Name:       "JavaScript",
		SourceFile: "main.js",
		RunCmd:     []string{"node", "{src}"},
	}
)

// Compiled builds a spec for a compile-then-run language.
func Compiled(id, name, compiler, ext string) LanguageSpec {
	return LanguageSpec{
		ID:         id,
		Name:       name,
		SourceFile: "main" + ext,
		BinaryFile: "main",
		Compiled:   true,
		CompileCmd: []string{compiler, "-o", "{bin}", "{src}"},
		RunCmd:     []string{"{bin}"},
	}
}

var registry = map[string]LanguageSpec{
	Python.ID:     Python,
	JavaScript.ID: JavaScript,
}

// Lookup resolves an editor-language identifier to its spec.
func Lookup(id string) (LanguageSpec, bool) {
	spec, ok := registry[id]
	return spec, ok
}

func (s LanguageSpec) expand(cmd []string, srcPath, binPath string) []string {
	out := make([]string, len(cmd))
	for i, arg := range cmd {
		switch arg {
		case "{src}":
			out[i] = srcPath
		case "{bin}":
			out[i] = binPath
		default:
			out[i] = arg
		}
	}
	return out
}
