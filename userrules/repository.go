package userrules

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/abpkit/contentfilter/rules"
	"gopkg.in/yaml.v3"
)

// Repository stores user rules.
type Repository interface {
	// Rules returns every stored rule in the order they were added.
	Rules(ctx context.Context) (rs []Rule, err error)

	// AddRules normalizes and stores rs.  Rules that are already stored are
	// ignored.
	AddRules(ctx context.Context, rs []Rule) (err error)

	// RemoveRule removes r if it is stored.
	RemoveRule(ctx context.Context, r Rule) (err error)
}

// type check
var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository is a [Repository] that keeps rules in memory.
type MemoryRepository struct {
	mu    *sync.Mutex
	rules []Rule
}

// NewMemoryRepository returns a new repository with no rules.
func NewMemoryRepository() (r *MemoryRepository) {
	return &MemoryRepository{
		mu: &sync.Mutex{},
	}
}

// Rules implements the [Repository] interface for *MemoryRepository.
func (r *MemoryRepository) Rules(_ context.Context) (rs []Rule, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.rules), nil
}

// AddRules implements the [Repository] interface for *MemoryRepository.
func (r *MemoryRepository) AddRules(_ context.Context, rs []Rule) (err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rules, err = appendRules(r.rules, rs)

	return err
}

// RemoveRule implements the [Repository] interface for *MemoryRepository.
func (r *MemoryRepository) RemoveRule(_ context.Context, rule Rule) (err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rules, err = removeRule(r.rules, rule)

	return err
}

// appendRules returns stored with the normalized rules of rs that it does not
// contain yet.
func appendRules(stored, rs []Rule) (res []Rule, err error) {
	res = slices.Clone(stored)
	for i, r := range rs {
		r, err = r.Normalize()
		if err != nil {
			return stored, fmt.Errorf("rule at index %d: %w", i, err)
		}

		if !slices.Contains(res, r) {
			res = append(res, r)
		}
	}

	return res, nil
}

// removeRule returns stored without the normalized form of r.
func removeRule(stored []Rule, r Rule) (res []Rule, err error) {
	r, err = r.Normalize()
	if err != nil {
		return stored, err
	}

	return slices.DeleteFunc(slices.Clone(stored), func(s Rule) (ok bool) { return s == r }), nil
}

// type check
var _ Repository = (*FileRepository)(nil)

// FileRepository is a [Repository] that keeps rules in a YAML file.  The file
// is rewritten atomically on every change.
type FileRepository struct {
	mu    *sync.Mutex
	path  string
	rules []Rule
}

// NewFileRepository returns a repository backed by the file at path.  A
// missing file means no rules.
func NewFileRepository(path string) (r *FileRepository, err error) {
	r = &FileRepository{
		mu:   &sync.Mutex{},
		path: path,
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return r, nil
	} else if err != nil {
		return nil, fmt.Errorf("reading user rules: %w", err)
	}

	f := &rulesFile{}
	err = yaml.Unmarshal(data, f)
	if err != nil {
		return nil, fmt.Errorf("decoding user rules: %w", err)
	}

	rs := make([]Rule, 0, len(f.Rules))
	for i, fr := range f.Rules {
		var rule Rule
		rule, err = fr.toRule()
		if err != nil {
			return nil, fmt.Errorf("user rule at index %d: %w", i, err)
		}

		rs = append(rs, rule)
	}

	r.rules, err = appendRules(nil, rs)
	if err != nil {
		return nil, fmt.Errorf("user rules: %w", err)
	}

	return r, nil
}

// Rules implements the [Repository] interface for *FileRepository.
func (r *FileRepository) Rules(_ context.Context) (rs []Rule, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.rules), nil
}

// AddRules implements the [Repository] interface for *FileRepository.
func (r *FileRepository) AddRules(_ context.Context, rs []Rule) (err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	updated, err := appendRules(r.rules, rs)
	if err != nil {
		return err
	}

	return r.save(updated)
}

// RemoveRule implements the [Repository] interface for *FileRepository.
func (r *FileRepository) RemoveRule(_ context.Context, rule Rule) (err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	updated, err := removeRule(r.rules, rule)
	if err != nil {
		return err
	}

	return r.save(updated)
}

// save writes rs to the file and makes them the current rules.  r.mu must be
// locked.
func (r *FileRepository) save(rs []Rule) (err error) {
	f := &rulesFile{
		Rules: make([]*fileRule, 0, len(rs)),
	}

	for _, rule := range rs {
		f.Rules = append(f.Rules, newFileRule(rule))
	}

	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("encoding user rules: %w", err)
	}

	err = writeFileAtomic(r.path, data)
	if err != nil {
		return fmt.Errorf("writing user rules: %w", err)
	}

	r.rules = rs

	return nil
}

// writeFileAtomic writes data to a temporary file next to path and renames it.
func writeFileAtomic(path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			err = errors.WithDeferred(err, os.Remove(tmp.Name()))
		}
	}()

	_, err = tmp.Write(data)
	err = errors.WithDeferred(err, tmp.Close())
	if err != nil {
		return err
	}

	return os.Rename(tmp.Name(), path)
}

// rulesFile is the structure of the user rules file.
type rulesFile struct {
	Rules []*fileRule `yaml:"rules"`
}

// fileRule is a rule in the user rules file.
type fileRule struct {
	Page       string `yaml:"page,omitempty"`
	Request    string `yaml:"request,omitempty"`
	Types      string `yaml:"types,omitempty"`
	Response   string `yaml:"response"`
	ThirdParty bool   `yaml:"third_party,omitempty"`
}

// newFileRule returns the file form of r.
func newFileRule(r Rule) (fr *fileRule) {
	fr = &fileRule{
		Page:       r.PageDomain,
		Request:    r.RequestDomain,
		Response:   r.Response.String(),
		ThirdParty: r.ThirdParty,
	}

	if r.ContentType != 0 {
		fr.Types = r.ContentType.String()
	}

	return fr
}

// toRule converts fr into a rule.
func (fr *fileRule) toRule() (r Rule, err error) {
	resp, err := ParseResponse(fr.Response)
	if err != nil {
		return Rule{}, err
	}

	var t rules.ContentType
	if fr.Types != "" {
		for name := range strings.SplitSeq(fr.Types, "|") {
			nt, ok := rules.ContentTypeByName(strings.TrimSpace(name))
			if !ok {
				return Rule{}, fmt.Errorf("types: %w: %q", errors.ErrBadEnumValue, name)
			}

			t |= nt
		}
	}

	return Rule{
		PageDomain:    fr.Page,
		RequestDomain: fr.Request,
		ContentType:   t,
		ThirdParty:    fr.ThirdParty,
		Response:      resp,
	}, nil
}
