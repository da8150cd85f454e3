package validator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/scalux/scalux/pkg/domain"
	"github.com/scalux/scalux/pkg/modetree"
	"github.com/scalux/scalux/pkg/ports"
)

// Severity grades a problem. Only errors make a definition unusable.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Problem is a single finding.
type Problem struct {
	Severity Severity `json:"severity"`
	Path     string   `json:"path,omitempty"`
	Message  string   `json:"message"`
}

func (p Problem) String() string {
	where := p.Path
	if where == "" {
		where = "/"
	}
	return fmt.Sprintf("%s: %s: %s", p.Severity, where, p.Message)
}

// Report collects every problem found in one pass.
type Report struct {
	Modes    int       `json:"modes"`
	Problems []Problem `json:"problems,omitempty"`
}

// HasErrors reports whether any problem has error severity.
func (r *Report) HasErrors() bool {
	for _, p := range r.Problems {
		if p.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Err summarizes the error-severity problems, or returns nil.
func (r *Report) Err() error {
	var lines []string
	for _, p := range r.Problems {
		if p.Severity == SeverityError {
			lines = append(lines, p.String())
		}
	}
	if len(lines) == 0 {
		return nil
	}
	return fmt.Errorf("found %d errors:\n- %s", len(lines), strings.Join(lines, "\n- "))
}

func (r *Report) add(sev Severity, path, format string, args ...any) {
	r.Problems = append(r.Problems, Problem{Severity: sev, Path: path, Message: fmt.Sprintf(format, args...)})
}

// Load reads the definition through loader and validates it. A loader
// failure is reported as a problem, not returned.
func Load(ctx context.Context, loader ports.TreeLoader, options map[string][]string) *Report {
	def, err := loader.Load(ctx)
	if err != nil {
		r := &Report{}
		r.add(SeverityError, "", "%v", err)
		return r
	}
	return Validate(def, options)
}

// Validate compiles def and the option set and lints the result.
func Validate(def domain.Tree, options map[string][]string) *Report {
	r := &Report{}

	tree, err := modetree.Compile(def)
	if err != nil {
		for _, e := range domain.Errors(err) {
			r.addError(e)
		}
		return r
	}
	r.Modes = tree.Len()

	_ = tree.Mirror().Walk(func(m *modetree.Mirror) error {
		if !m.IsLeaf() && len(m.Keys()) == 1 && m.Ref() != domain.RootRef {
			r.add(SeverityWarning, string(m.Ref()), "node has a single child %q and offers no choice", m.Keys()[0])
		}
		return nil
	})

	refs := modetree.ParseRefs(options)
	if _, err := tree.Options(refs); err != nil {
		for _, e := range domain.Errors(err) {
			r.addError(e)
		}
	}
	lintOptions(r, tree, refs)

	return r
}

func (r *Report) addError(err error) {
	var cfg *domain.ConfigurationError
	if errors.As(err, &cfg) {
		r.add(SeverityError, cfg.Path, "%s", cfg.Reason)
		return
	}
	r.add(SeverityError, "", "%v", err)
}

// lintOptions flags references that can never decide a selection: repeats
// and nodes listed after one of their ancestors.
func lintOptions(r *Report, tree *modetree.Tree, spec map[string][]modetree.NodeRef) {
	labels := make([]string, 0, len(spec))
	for l := range spec {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	for _, label := range labels {
		var earlier []modetree.NodeRef
		for _, ref := range spec[label] {
			if !tree.IsNode(ref) {
				continue
			}
		check:
			for _, prev := range earlier {
				switch {
				case prev == ref:
					r.add(SeverityWarning, string(ref), "option %q lists this node twice", label)
					break check
				case prev == domain.RootRef || strings.HasPrefix(string(ref), string(prev)+domain.Separator):
					r.add(SeverityWarning, string(ref), "option %q never reaches this node: ancestor %q is listed first", label, displayRef(prev))
					break check
				}
			}
			earlier = append(earlier, ref)
		}
	}
}

func displayRef(ref modetree.NodeRef) string {
	if ref == domain.RootRef {
		return domain.Separator
	}
	return string(ref)
}
