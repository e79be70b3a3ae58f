package field

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/notargets/gosubsurface/types"
)

// Series is a time ordered sequence of scalar frames, times strictly increase
type Series struct {
	Times  []float64 `msgpack:"t"`
	Frames []Scalar  `msgpack:"f"`
}

func (s *Series) Len() int { return len(s.Times) }

// Append adds a frame, rejecting a time that does not increase
func (s *Series) Append(t float64, f Scalar) error {
	if n := len(s.Times); n > 0 && !(t > s.Times[n-1]) {
		return fmt.Errorf("%w: series time %g does not follow %g", types.ErrInvalidInput, t, s.Times[n-1])
	}
	if n := len(s.Frames); n > 0 && (f.Location != s.Frames[0].Location || f.Len() != s.Frames[0].Len()) {
		return fmt.Errorf("%w: frame at t = %g has %d %s values, series holds %d %s values",
			types.ErrInvalidInput, t, f.Len(), f.Location, s.Frames[0].Len(), s.Frames[0].Location)
	}
	s.Times = append(s.Times, t)
	s.Frames = append(s.Frames, f)
	return nil
}

// Last returns the final frame and its time
func (s *Series) Last() (t float64, f Scalar) {
	n := len(s.Times) - 1
	return s.Times[n], s.Frames[n]
}

// Concat appends next to s. When next starts at the final time of s its first frame is the
// continuation of the last frame of s and is skipped
func (s *Series) Concat(next *Series) (out *Series, err error) {
	out = &Series{
		Times:  append([]float64(nil), s.Times...),
		Frames: append([]Scalar(nil), s.Frames...),
	}
	for i, t := range next.Times {
		if i == 0 && len(out.Times) > 0 && t == out.Times[len(out.Times)-1] {
			continue
		}
		if err = out.Append(t, next.Frames[i]); err != nil {
			return nil, err
		}
	}
	return
}

const seriesSchemaVersion uint16 = 1

// payload is the on-disk layout, the schema version guards decoding files written by
// other versions
type payload struct {
	Schema uint16            `msgpack:"schema"`
	Series map[string]Series `msgpack:"series"`
	Meta   map[string]string `msgpack:"meta"`
}

// Encode writes named series with free form metadata as msgpack
func Encode(w io.Writer, series map[string]*Series, meta map[string]string) error {
	p := payload{
		Schema: seriesSchemaVersion,
		Series: make(map[string]Series, len(series)),
		Meta:   meta,
	}
	for name, s := range series {
		p.Series[name] = *s
	}
	return msgpack.NewEncoder(w).Encode(&p)
}

func Decode(r io.Reader) (series map[string]*Series, meta map[string]string, err error) {
	var p payload
	if err = msgpack.NewDecoder(r).Decode(&p); err != nil {
		return
	}
	if p.Schema != seriesSchemaVersion {
		return nil, nil, fmt.Errorf("%w: series schema %d, expected %d",
			types.ErrInvalidInput, p.Schema, seriesSchemaVersion)
	}
	series = make(map[string]*Series, len(p.Series))
	for name := range p.Series {
		s := p.Series[name]
		series[name] = &s
	}
	return series, p.Meta, nil
}

// WriteFile encodes into a temporary file next to filename and renames it into place
func WriteFile(filename string, series map[string]*Series, meta map[string]string) (err error) {
	var f *os.File
	if f, err = os.CreateTemp(filepath.Dir(filename), "tmp-*"); err != nil {
		return
	}
	defer func() {
		if err != nil {
			_ = os.Remove(f.Name())
		}
	}()
	if err = Encode(f, series, meta); err != nil {
		_ = f.Close()
		return
	}
	if err = f.Close(); err != nil {
		return
	}
	return os.Rename(f.Name(), filename)
}

func ReadFile(filename string) (series map[string]*Series, meta map[string]string, err error) {
	var f *os.File
	if f, err = os.Open(filename); err != nil {
		return
	}
	defer f.Close()
	return Decode(f)
}
