package mapping

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	k8svalidation "k8s.io/apimachinery/pkg/util/validation"

	keysDomain "github.com/bizmatters/zerotouch-keys/internal/keys/domain"
)

// Scope values of a classified source value.
const (
	ScopeEnvironment = "environment"
	ScopeShared      = "shared"
)

// SecretRecord is the logical, decrypted secret produced by classification.
type SecretRecord struct {
	Name      string
	Namespace string
	Fields    map[string]string
	// OrderingHint is the lowest Order of the rules that fed the record.
	OrderingHint int
}

// Rejection is a source value skipped during classification.
type Rejection struct {
	Source string
	Secret string
	Reason string
}

// Result is the output of Classify.
type Result struct {
	// Records are sorted by namespace then name.
	Records    []SecretRecord
	Rejections []Rejection
}

// Options configures an Engine.
type Options struct {
	// Environments lists every known environment; a name carrying none of
	// their prefixes is shared.
	Environments []string
	// DefaultNamespace is used when the table names no namespace for the environment.
	DefaultNamespace string
	// DefaultKey is the field key produced by the default rule.
	DefaultKey string
}

// Engine classifies source values for one environment at a time.
type Engine struct {
	table  *Table
	opts   Options
	logger *slog.Logger
}

// NewEngine creates an Engine. table must have been validated.
func NewEngine(table *Table, opts Options, logger *slog.Logger) *Engine {
	if table == nil {
		table = &Table{}
	}
	return &Engine{table: table, opts: opts, logger: logger}
}

// Namespace returns the default namespace of env.
func (e *Engine) Namespace(env keysDomain.Environment) string {
	if ns, ok := e.table.Namespaces[string(env)]; ok && ns != "" {
		return ns
	}
	return e.opts.DefaultNamespace
}

type fieldRef struct {
	namespace string
	secret    string
	key       string
}

type assignment struct {
	ref   fieldRef
	value string
	order int
	scope string
	src   string
}

// Classify routes values belonging to env (its prefix or the shared scope)
// into secret records. Values whose derived names are invalid are skipped
// and reported as rejections. An environment value overrides a shared value
// that resolves to the same field.
func (e *Engine) Classify(values []SourceValue, env keysDomain.Environment) (*Result, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}

	result := &Result{}
	fields := make(map[fieldRef]assignment)

	for _, sv := range values {
		name, scope, ok := e.strip(sv.Name, env)
		if !ok {
			continue
		}

		for _, a := range e.route(name, env) {
			a.value = sv.Value
			a.scope = scope
			a.src = sv.Name

			if reason := invalid(a.ref); reason != "" {
				result.Rejections = append(result.Rejections, Rejection{Source: sv.Name, Secret: a.ref.secret, Reason: reason})
				continue
			}

			prev, taken := fields[a.ref]
			switch {
			case !taken:
				fields[a.ref] = a
			case prev.scope == ScopeShared && scope == ScopeEnvironment:
				fields[a.ref] = a
			case prev.scope == scope:
				result.Rejections = append(result.Rejections, Rejection{
					Source: sv.Name,
					Secret: a.ref.secret,
					Reason: fmt.Sprintf("field %q already set by %s", a.ref.key, prev.src),
				})
			}
		}
	}

	result.Records = fold(fields)

	for _, r := range result.Rejections {
		e.logger.Warn("source value skipped",
			slog.String("environment", env.String()),
			slog.String("source", r.Source),
			slog.String("secret", r.Secret),
			slog.String("reason", r.Reason),
		)
	}
	return result, nil
}

// strip removes the environment prefix. Values of other environments are
// not ours; values without any known prefix are shared.
func (e *Engine) strip(name string, env keysDomain.Environment) (string, string, bool) {
	if rest, ok := strings.CutPrefix(name, env.Prefix()); ok && rest != "" {
		return rest, ScopeEnvironment, true
	}
	for _, other := range e.opts.Environments {
		if other == string(env) {
			continue
		}
		if strings.HasPrefix(name, keysDomain.Environment(other).Prefix()) {
			return "", "", false
		}
	}
	return name, ScopeShared, true
}

// route applies every matching rule, or the default rule when none matches.
func (e *Engine) route(name string, env keysDomain.Environment) []assignment {
	var out []assignment
	for i := range e.table.Rules {
		rule := &e.table.Rules[i]
		if !rule.Matches(name) {
			continue
		}
		for _, target := range rule.Targets {
			ref := fieldRef{namespace: target.Namespace, secret: target.Secret, key: target.Key}
			if ref.namespace == "" {
				ref.namespace = e.Namespace(env)
			}
			if ref.key == "" {
				ref.key = e.opts.DefaultKey
			}
			out = append(out, assignment{ref: ref, order: rule.Order})
		}
	}
	if len(out) > 0 {
		return out
	}
	return []assignment{{
		ref: fieldRef{
			namespace: e.Namespace(env),
			secret:    DefaultSecretName(name),
			key:       e.opts.DefaultKey,
		},
	}}
}

// DefaultSecretName derives a secret name from a source name: lower case
// with underscores turned into hyphens (DATABASE_URL -> database-url).
func DefaultSecretName(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, "_", "-"))
}

func invalid(ref fieldRef) string {
	if errs := k8svalidation.IsDNS1123Label(ref.secret); len(errs) > 0 {
		return "invalid secret name: " + strings.Join(errs, "; ")
	}
	if errs := k8svalidation.IsDNS1123Label(ref.namespace); len(errs) > 0 {
		return "invalid namespace: " + strings.Join(errs, "; ")
	}
	if errs := k8svalidation.IsConfigMapKey(ref.key); len(errs) > 0 {
		return "invalid field key: " + strings.Join(errs, "; ")
	}
	return ""
}

// fold merges field assignments into one record per (namespace, name).
func fold(fields map[fieldRef]assignment) []SecretRecord {
	type recordRef struct{ namespace, name string }
	records := make(map[recordRef]*SecretRecord)
	hinted := make(map[recordRef]bool)

	for ref, a := range fields {
		key := recordRef{namespace: ref.namespace, name: ref.secret}
		rec, ok := records[key]
		if !ok {
			rec = &SecretRecord{Name: ref.secret, Namespace: ref.namespace, Fields: map[string]string{}}
			records[key] = rec
		}
		rec.Fields[ref.key] = a.value
		if a.order != 0 && (!hinted[key] || a.order < rec.OrderingHint) {
			rec.OrderingHint = a.order
			hinted[key] = true
		}
	}

	out := make([]SecretRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Namespace != out[j].Namespace {
			return out[i].Namespace < out[j].Namespace
		}
		return out[i].Name < out[j].Name
	})
	return out
}
