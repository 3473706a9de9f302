package filterlist

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/abpkit/contentfilter/rules"
)

// StoreScanner streams the filters of one class of several compiled lists.
// It opens one list at a time and keeps a single record in memory.  The
// checksum of a list is verified before its first record is returned, so a
// corrupt list contributes nothing.  Lists without a file for the class are
// skipped silently, lists that cannot be read are skipped and reported by
// [StoreScanner.Err].
type StoreScanner struct {
	logger *slog.Logger

	file *os.File
	dec  *decoder

	filter  *rules.Filter
	element *rules.ElementFilter

	dir   string
	class Class
	ids   []string
	errs  []error

	// next is the index of the next list in ids.
	next int

	// left is the number of records left in the current list.
	left uint32
}

// Scan advances the scanner to the next filter.  It returns false when there
// are no more filters.
func (s *StoreScanner) Scan() (ok bool) {
	s.filter, s.element = nil, nil
	for {
		if s.dec == nil {
			if s.next >= len(s.ids) {
				return false
			}

			s.open(s.ids[s.next])
			s.next++

			continue
		}

		if s.left == 0 {
			s.closeFile()

			continue
		}

		s.left--
		err := s.read()
		if err == nil {
			return true
		}

		// Records after a broken one cannot be located reliably.
		s.fail(fmt.Errorf("list %q: record: %w", s.ids[s.next-1], err))
		s.closeFile()
	}
}

// read reads the next record into the scanner.
func (s *StoreScanner) read() (err error) {
	switch s.dec.kind {
	case recordFilter:
		s.filter, err = s.dec.readFilter()
	case recordElement:
		s.element, err = s.dec.readElement()
	default:
		err = fmt.Errorf("record kind: %w: %d", errors.ErrBadEnumValue, s.dec.kind)
	}

	return err
}

// open opens the file of list id and verifies it.  On failure the list is
// skipped.
func (s *StoreScanner) open(id string) {
	err := validateID(id)
	if err != nil {
		s.fail(err)

		return
	}

	f, err := os.Open(filepath.Join(s.dir, s.class.fileName(id)))
	if errors.Is(err, fs.ErrNotExist) {
		return
	} else if err != nil {
		s.fail(err)

		return
	}

	n, err := verifyFile(f)
	if err == nil {
		s.dec, err = newRecordDecoder(f)
	}

	if err != nil {
		s.fail(fmt.Errorf("list %q: %w", id, errors.WithDeferred(err, f.Close())))

		return
	}

	s.file, s.left = f, n
}

// verifyFile verifies the checksum of f and rewinds it.
func verifyFile(f *os.File) (n uint32, err error) {
	fi, err := f.Stat()
	if err != nil {
		return 0, err
	}

	n, err = verify(f, fi.Size())
	if err != nil {
		return 0, err
	}

	_, err = f.Seek(0, 0)

	return n, err
}

// fail records a skipped list.
func (s *StoreScanner) fail(err error) {
	s.logger.Debug("skipping list", "class", s.class, slogutil.KeyError, err)
	s.errs = append(s.errs, err)
}

// closeFile closes the current list.
func (s *StoreScanner) closeFile() {
	if s.file == nil {
		return
	}

	err := s.file.Close()
	if err != nil {
		s.fail(err)
	}

	s.file, s.dec, s.left = nil, nil, 0
}

// Filter returns the current network filter.
func (s *StoreScanner) Filter() (f *rules.Filter) {
	return s.filter
}

// Element returns the current element filter.
func (s *StoreScanner) Element() (e *rules.ElementFilter) {
	return s.element
}

// Err returns the errors of the lists that were skipped so far, if any.
func (s *StoreScanner) Err() (err error) {
	return errors.Join(s.errs...)
}

// Close closes the current list, if any.
func (s *StoreScanner) Close() (err error) {
	if s.file == nil {
		return nil
	}

	err = s.file.Close()
	s.file, s.dec, s.left = nil, nil, 0

	return err
}
