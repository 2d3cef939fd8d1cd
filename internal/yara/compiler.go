package yara

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// ErrNoCompiler indicates that no rule compiler is available on this host.
var ErrNoCompiler = errors.New("yara compiler not available")

// CompileResult is one error or warning reported by the rule compiler.
// Line numbers are one-based as reported by the compiler.
type CompileResult struct {
	Line    int
	Message string
	Warning bool
}

// Compiler validates rule sources and reports line-numbered errors and
// warnings. Implementations wrap an external toolchain; absence of a
// compiler disables diagnostics and compile commands but never crashes a
// session.
type Compiler interface {
	Compile(source string) ([]CompileResult, error)
	Version() string
}

// FindCompiler locates the yarac binary on PATH and returns a Compiler
// backed by it, or ErrNoCompiler when the binary is missing.
func FindCompiler() (Compiler, error) {
	path, err := exec.LookPath("yarac")
	if err != nil {
		return nil, ErrNoCompiler
	}
	return &commandCompiler{path: path}, nil
}

// commandCompiler shells out to yarac and parses its stderr output.
type commandCompiler struct {
	path string
}

// yarac reports problems as `file(12): error: message`
var resultPattern = regexp.MustCompile(`\((\d+)\): (error|warning): (.+)$`)

// Compile writes source to a scratch file, invokes the compiler, and parses
// every reported error and warning. A failing compile is a normal outcome,
// not an error; only inability to run the compiler is returned as one.
func (c *commandCompiler) Compile(source string) ([]CompileResult, error) {
	dir, err := os.MkdirTemp("", "yarals")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	src := filepath.Join(dir, "rules.yara")
	if err := os.WriteFile(src, []byte(source), 0o600); err != nil {
		return nil, fmt.Errorf("write scratch rules: %w", err)
	}

	cmd := exec.Command(c.path, src, filepath.Join(dir, "rules.yarac"))
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("run compiler: %w", err)
		}
	}

	return ParseCompilerOutput(stderr.String()), nil
}

// Version reports the underlying compiler version, or an empty string when
// it cannot be determined.
func (c *commandCompiler) Version() string {
	out, err := exec.Command(c.path, "--version").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// ParseCompilerOutput extracts line-numbered results from compiler stderr.
func ParseCompilerOutput(output string) []CompileResult {
	var results []CompileResult
	for _, line := range strings.Split(output, "\n") {
		m := resultPattern.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		lineNo, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		results = append(results, CompileResult{
			Line:    lineNo,
			Message: m[3],
			Warning: m[2] == "warning",
		})
	}
	return results
}
