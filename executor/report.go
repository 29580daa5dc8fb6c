package executor

import ssz "github.com/ferranbt/fastssz"

// Report is what a child writes back after the harness returns. It is
// framed as a fixed-size SSZ container: two little-endian uint64 fields.
type Report struct {
	Code    int64  // Harness return value
	Elapsed uint64 // Harness run time in nanoseconds
}

const reportSize = 16

var (
	_ ssz.Marshaler   = (*Report)(nil)
	_ ssz.Unmarshaler = (*Report)(nil)
)

func (r *Report) SizeSSZ() int {
	return reportSize
}

func (r *Report) MarshalSSZ() ([]byte, error) {
	return r.MarshalSSZTo(make([]byte, 0, reportSize))
}

func (r *Report) MarshalSSZTo(dst []byte) ([]byte, error) {
	// Field (0) 'Code'
	dst = ssz.MarshalUint64(dst, uint64(r.Code))
	// Field (1) 'Elapsed'
	dst = ssz.MarshalUint64(dst, r.Elapsed)
	return dst, nil
}

func (r *Report) UnmarshalSSZ(buf []byte) error {
	if len(buf) != reportSize {
		return ssz.ErrSize
	}
	r.Code = int64(ssz.UnmarshallUint64(buf[0:8]))
	r.Elapsed = ssz.UnmarshallUint64(buf[8:16])
	return nil
}
