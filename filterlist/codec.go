package filterlist

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash"
	"hash/crc32"
	"io"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/abpkit/contentfilter/rules"
)

// Compiled list file format:
//
//	header:  "CFLT" version:1 kind:1
//	records: see writeFilter and writeElement
//	trailer: count:uint32le crc32:uint32le "TLFC"
//
// The checksum covers the header and the records.
const (
	fileMagic    = "CFLT"
	trailerMagic = "TLFC"

	formatVersion byte = 1

	headerLen  = len(fileMagic) + 2
	trailerLen = 4 + 4 + len(trailerMagic)

	// maxStringLen is the maximum length of a string in a record.
	maxStringLen = 1024 * 1024
)

// errStringTooLong is returned for records with strings longer than
// maxStringLen.
const errStringTooLong errors.Error = "string too long"

// recordKind is the kind of records in a compiled list file.
type recordKind byte

// Record kinds.
const (
	recordFilter  recordKind = 1
	recordElement recordKind = 2
)

// Filter record flags.
const (
	flagMatchCase uint64 = 1 << iota
	flagAllow
	flagImportant
)

// kindOf returns the record kind of class c.
func kindOf(c Class) (k recordKind) {
	if c == ClassElement || c == ClassElement.Bad() {
		return recordElement
	}

	return recordFilter
}

// encoder writes a compiled list file.
type encoder struct {
	w   *bufio.Writer
	crc hash.Hash32
	buf []byte
	n   uint32
}

// newEncoder returns a new encoder writing to w and writes the header.
func newEncoder(w io.Writer, kind recordKind) (e *encoder, err error) {
	crc := crc32.NewIEEE()
	e = &encoder{
		w:   bufio.NewWriter(io.MultiWriter(w, crc)),
		crc: crc,
	}

	_, err = e.w.WriteString(fileMagic)
	if err != nil {
		return nil, err
	}

	err = e.w.WriteByte(formatVersion)
	if err != nil {
		return nil, err
	}

	return e, e.w.WriteByte(byte(kind))
}

// appendString appends a length-prefixed string to the record buffer.
func (e *encoder) appendString(s string) {
	e.buf = binary.AppendUvarint(e.buf, uint64(len(s)))
	e.buf = append(e.buf, s...)
}

// appendUint appends a number to the record buffer.
func (e *encoder) appendUint(v uint64) {
	e.buf = binary.AppendUvarint(e.buf, v)
}

// flush writes the record buffer.
func (e *encoder) flush() (err error) {
	_, err = e.w.Write(e.buf)
	e.buf = e.buf[:0]
	e.n++

	return err
}

// writeFilter writes a network filter record:
//
//	text pattern kind contentType party flags domains modifyKind modifyValue
func (e *encoder) writeFilter(f *rules.Filter) (err error) {
	var flags uint64
	if f.MatchCase {
		flags |= flagMatchCase
	}

	if f.Allow {
		flags |= flagAllow
	}

	if f.Important {
		flags |= flagImportant
	}

	e.appendString(f.Text)
	e.appendString(f.Pattern)
	e.appendUint(uint64(f.Kind))
	e.appendUint(uint64(f.ContentType))
	e.appendUint(uint64(f.Party))
	e.appendUint(flags)
	e.appendString(domainsString(f.Domains))

	if f.Modify == nil {
		e.appendUint(0)
		e.appendString("")
	} else {
		e.appendUint(uint64(f.Modify.Kind()))
		e.appendString(f.Modify.Value())
	}

	return e.flush()
}

// writeElement writes an element filter record:
//
//	selector hide domains
func (e *encoder) writeElement(f *rules.ElementFilter) (err error) {
	var hide uint64
	if f.Hide {
		hide = 1
	}

	e.appendString(f.Selector)
	e.appendUint(hide)
	e.appendString(domainsString(f.Domains))

	return e.flush()
}

// close writes the trailer and flushes the data.
func (e *encoder) close() (err error) {
	err = e.w.Flush()
	if err != nil {
		return err
	}

	trailer := binary.LittleEndian.AppendUint32(nil, e.n)
	trailer = binary.LittleEndian.AppendUint32(trailer, e.crc.Sum32())
	trailer = append(trailer, trailerMagic...)

	_, err = e.w.Write(trailer)
	if err != nil {
		return err
	}

	return e.w.Flush()
}

// domainsString returns the canonical form of m or an empty string for nil.
func domainsString(m *rules.DomainMap) (s string) {
	if m == nil {
		return ""
	}

	return m.String()
}

// decoder reads the records of a compiled list file.
type decoder struct {
	r    *bufio.Reader
	kind recordKind
}

// newRecordDecoder returns a decoder reading from r after checking the
// header.
func newRecordDecoder(r io.Reader) (d *decoder, err error) {
	br := bufio.NewReader(r)
	header := make([]byte, headerLen)
	_, err = io.ReadFull(br, header)
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	if string(header[:len(fileMagic)]) != fileMagic {
		return nil, ErrBadMagic
	}

	if v := header[len(fileMagic)]; v != formatVersion {
		return nil, fmt.Errorf("format version: %w: %d", errors.ErrBadEnumValue, v)
	}

	return &decoder{
		r:    br,
		kind: recordKind(header[len(fileMagic)+1]),
	}, nil
}

// readString reads a length-prefixed string.
func (d *decoder) readString() (s string, err error) {
	n, err := binary.ReadUvarint(d.r)
	if err != nil {
		return "", err
	} else if n > maxStringLen {
		return "", fmt.Errorf("string length %d: %w", n, errStringTooLong)
	}

	b := make([]byte, n)
	_, err = io.ReadFull(d.r, b)

	return string(b), err
}

// readFilter reads a network filter record.
func (d *decoder) readFilter() (f *rules.Filter, err error) {
	text, err := d.readString()
	if err != nil {
		return nil, err
	}

	pattern, err := d.readString()
	if err != nil {
		return nil, err
	}

	var nums [4]uint64
	for i := range nums {
		nums[i], err = binary.ReadUvarint(d.r)
		if err != nil {
			return nil, err
		}
	}

	domains, err := d.readDomains()
	if err != nil {
		return nil, err
	}

	modify, err := d.readModify()
	if err != nil {
		return nil, err
	}

	flags := nums[3]

	return rules.NewFilter(&rules.FilterConfig{
		Domains:     domains,
		Modify:      modify,
		Text:        text,
		Pattern:     pattern,
		Kind:        rules.MatchKind(nums[0]),
		ContentType: rules.ContentType(nums[1]),
		Party:       rules.Party(nums[2]),
		MatchCase:   flags&flagMatchCase != 0,
		Allow:       flags&flagAllow != 0,
		Important:   flags&flagImportant != 0,
	})
}

// readModify reads the modify action of a filter record.
func (d *decoder) readModify() (a rules.ModifyAction, err error) {
	k, err := binary.ReadUvarint(d.r)
	if err != nil {
		return nil, err
	}

	value, err := d.readString()
	if err != nil || k == 0 {
		return nil, err
	}

	return rules.NewModifyAction(rules.ModifyKind(k), value)
}

// readDomains reads the domain scope of a record.
func (d *decoder) readDomains() (m *rules.DomainMap, err error) {
	s, err := d.readString()
	if err != nil || s == "" {
		return nil, err
	}

	return rules.ParseDomainMap(s, domainSeparator)
}

// readElement reads an element filter record.
func (d *decoder) readElement() (f *rules.ElementFilter, err error) {
	selector, err := d.readString()
	if err != nil {
		return nil, err
	}

	hide, err := binary.ReadUvarint(d.r)
	if err != nil {
		return nil, err
	}

	domains, err := d.readDomains()
	if err != nil {
		return nil, err
	}

	return &rules.ElementFilter{
		Domains:  domains,
		Selector: selector,
		Hide:     hide != 0,
	}, nil
}

// verify checks the trailer and the checksum of a compiled list file of the
// given size and returns the number of records.
func verify(r io.ReaderAt, size int64) (n uint32, err error) {
	if size < int64(headerLen+trailerLen) {
		return 0, fmt.Errorf("file size %d: %w", size, ErrBadMagic)
	}

	bodyLen := size - int64(trailerLen)
	trailer := make([]byte, trailerLen)
	_, err = r.ReadAt(trailer, bodyLen)
	if err != nil {
		return 0, fmt.Errorf("reading trailer: %w", err)
	}

	if string(trailer[8:]) != trailerMagic {
		return 0, ErrBadMagic
	}

	crc := crc32.NewIEEE()
	_, err = io.Copy(crc, io.NewSectionReader(r, 0, bodyLen))
	if err != nil {
		return 0, fmt.Errorf("reading records: %w", err)
	}

	if crc.Sum32() != binary.LittleEndian.Uint32(trailer[4:8]) {
		return 0, ErrBadChecksum
	}

	return binary.LittleEndian.Uint32(trailer[:4]), nil
}
