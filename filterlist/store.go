package filterlist

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/abpkit/contentfilter/internal/lookup"
	"github.com/abpkit/contentfilter/rules"
)

// tmpPattern is the name pattern of the files being written.
const tmpPattern = ".tmp-*"

// ctxCheckPeriod is the number of records between context checks when loading
// lists.
const ctxCheckPeriod = 1024

// StoreConfig is the configuration structure for a [Store].
type StoreConfig struct {
	// Logger is used to log skipped lists.  It must not be nil.
	Logger *slog.Logger

	// Dir is the directory of the compiled list files.  It is created if it
	// does not exist.
	Dir string
}

// Store keeps compiled lists as one file per class and list id, so that the
// engine can be rebuilt without decoding the text lists again.
type Store struct {
	logger *slog.Logger
	dir    string
}

// NewStore returns a new properly initialized *Store.
func NewStore(c *StoreConfig) (s *Store, err error) {
	err = os.MkdirAll(c.Dir, 0o755)
	if err != nil {
		return nil, fmt.Errorf("creating store dir: %w", err)
	}

	return &Store{
		logger: c.Logger,
		dir:    c.Dir,
	}, nil
}

// allClasses returns every class a list can have files for.
func allClasses() (classes []Class) {
	for _, c := range slices.Concat(NetworkClasses, []Class{ClassElement}) {
		classes = append(classes, c, c.Bad())
	}

	return classes
}

// validateID returns an error if id cannot be used in a file name.
func validateID(id string) (err error) {
	if id == "" || id[0] == '.' {
		return fmt.Errorf("%w: %q", ErrBadListID, id)
	}

	for i := range len(id) {
		c := id[i]
		switch {
		case
			c >= 'a' && c <= 'z',
			c >= 'A' && c <= 'Z',
			c >= '0' && c <= '9',
			c == '.', c == '-', c == '_':
			// Go on.
		default:
			return fmt.Errorf("%w: %q", ErrBadListID, id)
		}
	}

	return nil
}

// Write replaces the compiled files of list id with the contents of res.
// Files of classes res has no filters of are removed.  Every class is encoded
// to a temporary file before any current file is replaced, so that an encoding
// error leaves the list as it was.  If replacing a file fails, the files of the
// classes after it are left as they were.
func (s *Store) Write(id string, res *Result) (err error) {
	err = validateID(id)
	if err != nil {
		return err
	}

	staged, err := s.stage(res)
	if err != nil {
		return fmt.Errorf("writing list %q: %w", id, err)
	}

	err = s.commit(id, staged)
	if err != nil {
		return fmt.Errorf("writing list %q: %w", id, err)
	}

	return nil
}

// classLen returns the number of records of class c in res.
func classLen(res *Result, c Class) (n int) {
	if c == ClassElement {
		return len(res.Elements)
	}

	return len(res.Sets[c])
}

// stage writes every non-empty class of res to a temporary file and returns
// their paths.  The files are removed on error.
func (s *Store) stage(res *Result) (staged map[Class]string, err error) {
	staged = map[Class]string{}
	for _, c := range allClasses() {
		if classLen(res, c) == 0 {
			continue
		}

		var tmp string
		tmp, err = s.writeTemp(c, res)
		if err != nil {
			return nil, errors.WithDeferred(err, removeStaged(staged))
		}

		staged[c] = tmp
	}

	return staged, nil
}

// commit moves the staged files of list id into place and removes the files
// of the classes that have none.  It stops at the first error and removes the
// files left staged.
func (s *Store) commit(id string, staged map[Class]string) (err error) {
	for _, c := range allClasses() {
		path := filepath.Join(s.dir, c.fileName(id))

		tmp, ok := staged[c]
		if !ok {
			err = removeIfExists(path)
		} else {
			err = os.Rename(tmp, path)
			if err == nil {
				delete(staged, c)
			}
		}

		if err != nil {
			return errors.WithDeferred(fmt.Errorf("class %s: %w", c, err), removeStaged(staged))
		}
	}

	return nil
}

// removeStaged removes the temporary files of staged.
func removeStaged(staged map[Class]string) (err error) {
	var errs []error
	for _, tmp := range staged {
		errs = append(errs, removeIfExists(tmp))
	}

	return errors.Join(errs...)
}

// writeTemp writes the filters of class c from res to a new temporary file in
// the store directory and returns its path.
func (s *Store) writeTemp(c Class, res *Result) (path string, err error) {
	tmp, err := os.CreateTemp(s.dir, tmpPattern)
	if err != nil {
		return "", err
	}

	defer func() {
		if err != nil {
			err = errors.WithDeferred(err, os.Remove(tmp.Name()))
		}
	}()

	err = encodeClass(tmp, c, res)
	err = errors.WithDeferred(err, tmp.Close())
	if err != nil {
		return "", fmt.Errorf("class %s: %w", c, err)
	}

	return tmp.Name(), nil
}

// encodeClass writes the records of class c from res to f.
func encodeClass(f *os.File, c Class, res *Result) (err error) {
	enc, err := newEncoder(f, kindOf(c))
	if err != nil {
		return err
	}

	if c == ClassElement {
		for _, e := range res.Elements {
			err = enc.writeElement(e)
			if err != nil {
				return err
			}
		}
	} else {
		for _, flt := range res.Sets[c] {
			err = enc.writeFilter(flt)
			if err != nil {
				return err
			}
		}
	}

	err = enc.close()
	if err != nil {
		return err
	}

	return f.Sync()
}

// removeIfExists removes the file at path if there is one.
func removeIfExists(path string) (err error) {
	err = os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	return err
}

// Remove removes every compiled file of list id.
func (s *Store) Remove(id string) (err error) {
	err = validateID(id)
	if err != nil {
		return err
	}

	var errs []error
	for _, c := range allClasses() {
		errs = append(errs, removeIfExists(filepath.Join(s.dir, c.fileName(id))))
	}

	return errors.Join(errs...)
}

// NewScanner returns a scanner over the filters of class c of the lists with
// the given ids, in order.  Invalid ids are skipped.
func (s *Store) NewScanner(c Class, ids []string) (sc *StoreScanner) {
	return &StoreScanner{
		logger: s.logger,
		dir:    s.dir,
		class:  c,
		ids:    ids,
	}
}

// NewElementScanner returns a scanner over the element filters of the lists
// with the given ids.
func (s *Store) NewElementScanner(ids []string) (sc *StoreScanner) {
	return s.NewScanner(ClassElement, ids)
}

// badTexts returns the texts of the $badfilter records for class c of the
// lists with the given ids.
func (s *Store) badTexts(ctx context.Context, c Class, ids []string) (texts map[string]struct{}, err error) {
	sc := s.NewScanner(c.Bad(), ids)
	defer func() { err = errors.WithDeferred(err, sc.Close()) }()

	texts = map[string]struct{}{}
	for i := 0; sc.Scan(); i++ {
		if i%ctxCheckPeriod == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}

		texts[sc.Filter().Text] = struct{}{}
	}

	return texts, nil
}

// Load adds the filters of class c of the lists with the given ids to t,
// except the ones cancelled by a $badfilter record of any of these lists.  It
// returns the number of filters added.  Lists that cannot be read are logged
// and skipped.
func (s *Store) Load(ctx context.Context, c Class, ids []string, t lookup.Table) (n int, err error) {
	bad, err := s.badTexts(ctx, c, ids)
	if err != nil {
		return 0, err
	}

	sc := s.NewScanner(c, ids)
	defer func() { err = errors.WithDeferred(err, sc.Close()) }()

	for i := 0; sc.Scan(); i++ {
		if i%ctxCheckPeriod == 0 && ctx.Err() != nil {
			return n, ctx.Err()
		}

		f := sc.Filter()
		if _, ok := bad[f.Text]; ok {
			continue
		}

		t.Add(f)
		n++
	}

	s.logSkipped(ctx, c, sc)

	return n, nil
}

// LoadElements adds the element filters of the lists with the given ids to
// ec and returns the number of filters added.
func (s *Store) LoadElements(
	ctx context.Context,
	ids []string,
	ec *lookup.ElementContainer,
) (n int, err error) {
	sc := s.NewElementScanner(ids)
	defer func() { err = errors.WithDeferred(err, sc.Close()) }()

	for i := 0; sc.Scan(); i++ {
		if i%ctxCheckPeriod == 0 && ctx.Err() != nil {
			return n, ctx.Err()
		}

		ec.Add(sc.Element())
		n++
	}

	s.logSkipped(ctx, ClassElement, sc)

	return n, nil
}

// logSkipped logs the lists sc had to skip.
func (s *Store) logSkipped(ctx context.Context, c Class, sc *StoreScanner) {
	if err := sc.Err(); err != nil {
		s.logger.WarnContext(ctx, "skipped lists", "class", c, slogutil.KeyError, err)
	}
}

// ListFilters returns every filter of the list with the given id, for
// inspection and tests.
func (s *Store) ListFilters(id string) (filters map[Class][]*rules.Filter, err error) {
	err = validateID(id)
	if err != nil {
		return nil, err
	}

	filters = map[Class][]*rules.Filter{}
	for _, c := range allClasses() {
		if kindOf(c) != recordFilter {
			continue
		}

		sc := s.NewScanner(c, []string{id})
		for sc.Scan() {
			filters[c] = append(filters[c], sc.Filter())
		}

		err = errors.Join(sc.Err(), sc.Close())
		if err != nil {
			return nil, err
		}
	}

	return filters, nil
}
