package directory

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// Codec encodes and decodes canonical group identifiers against the
// configured per-kind templates. Decoding uses one combined pattern built
// lazily from the alternation of every template, so a single regexp
// evaluation classifies any identifier. Safe for concurrent use.
type Codec struct {
	cfg *Config

	once     sync.Once
	combined *regexp.Regexp
	buildErr error
}

func NewCodec(cfg *Config) *Codec {
	return &Codec{cfg: cfg}
}

func (c *Codec) Encode(kind GroupKind, repositoryID, userDefinedID string) (string, error) {
	kt, ok := c.cfg.Kind(kind)
	if !ok {
		return "", fmt.Errorf("directory: unknown group kind %q", kind)
	}
	id := strings.ReplaceAll(kt.Template, RepositoryIDPlaceholder, repositoryID)
	if kind == KindUserDefined {
		id = strings.ReplaceAll(id, UserDefinedIDPlaceholder, userDefinedID)
	}
	return id, nil
}

// Decode classifies one raw identifier. Identifiers outside the configured
// naming convention are not errors; they belong to externally managed groups
// and decode to nothing.
func (c *Codec) Decode(id string) (Affiliation, bool) {
	if id == "" || len(id) > c.cfg.MaxIdentifierLength {
		return nil, false
	}
	re, err := c.pattern()
	if err != nil {
		return nil, false
	}
	m := re.FindStringSubmatch(id)
	if m == nil {
		return nil, false
	}
	names := re.SubexpNames()
	byName := make(map[string]string, len(names))
	for i, name := range names {
		if name != "" && m[i] != "" {
			byName[name] = m[i]
		}
	}
	for _, kt := range c.cfg.Kinds {
		if _, hit := byName[kindMarker(kt.Kind)]; !hit {
			continue
		}
		repoID := byName[kindCapture(kt.Kind, "repository_id")]
		if kt.Kind == KindUserDefined {
			return GroupAffiliation{
				RepositoryID:  repoID,
				GroupID:       id,
				UserDefinedID: byName[kindCapture(kt.Kind, "user_defined_id")],
			}, true
		}
		aff := RoleAffiliation{Role: kt.Role}
		if strings.Contains(kt.Template, RepositoryIDPlaceholder) {
			aff.RepositoryID = &repoID
		}
		return aff, true
	}
	return nil, false
}

// pattern builds the combined alternation at most once per codec. Each
// template becomes one alternative wrapped in a kind marker group, with its
// placeholders turned into kind-prefixed named captures; Go's leftmost-first
// alternation makes the first-declared kind win on ambiguous identifiers.
func (c *Codec) pattern() (*regexp.Regexp, error) {
	c.once.Do(func() {
		alts := make([]string, 0, len(c.cfg.Kinds))
		for _, kt := range c.cfg.Kinds {
			alts = append(alts, templateAlternative(kt))
		}
		expr := `\A(?:` + strings.Join(alts, "|") + `)\z`
		c.combined, c.buildErr = regexp.Compile(expr)
		if c.buildErr != nil {
			c.buildErr = fmt.Errorf("directory: compile combined identifier pattern: %w", c.buildErr)
		}
	})
	return c.combined, c.buildErr
}

// BuildPattern forces the combined pattern build so template problems
// surface at startup instead of on the first request.
func (c *Codec) BuildPattern() error {
	_, err := c.pattern()
	return err
}

func templateAlternative(kt KindTemplate) string {
	var b strings.Builder
	b.WriteString("(?P<" + kindMarker(kt.Kind) + ">")
	rest := kt.Template
	for rest != "" {
		ri := strings.Index(rest, RepositoryIDPlaceholder)
		ui := strings.Index(rest, UserDefinedIDPlaceholder)
		switch {
		case ri >= 0 && (ui < 0 || ri < ui):
			b.WriteString(regexp.QuoteMeta(rest[:ri]))
			b.WriteString("(?P<" + kindCapture(kt.Kind, "repository_id") + ">.+?)")
			rest = rest[ri+len(RepositoryIDPlaceholder):]
		case ui >= 0:
			b.WriteString(regexp.QuoteMeta(rest[:ui]))
			b.WriteString("(?P<" + kindCapture(kt.Kind, "user_defined_id") + ">.+)")
			rest = rest[ui+len(UserDefinedIDPlaceholder):]
		default:
			b.WriteString(regexp.QuoteMeta(rest))
			rest = ""
		}
	}
	b.WriteString(")")
	return b.String()
}

var captureNameSanitizer = regexp.MustCompile(`[^0-9A-Za-z_]`)

func kindMarker(kind GroupKind) string {
	return "k_" + captureNameSanitizer.ReplaceAllString(string(kind), "_")
}

func kindCapture(kind GroupKind, field string) string {
	return kindMarker(kind) + "__" + field
}
