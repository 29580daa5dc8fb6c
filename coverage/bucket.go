package coverage

// Hitcount buckets. Counter values are folded into one of these so that
// loop-count jitter inside a bucket does not register as new coverage.
const (
	BucketNone    byte = 0
	Bucket1       byte = 1
	Bucket2       byte = 2
	Bucket3       byte = 4
	Bucket4to7    byte = 8
	Bucket8to15   byte = 16
	Bucket16to31  byte = 32
	Bucket32to127 byte = 64
	Bucket128Up   byte = 128

	// TopBucket is the highest bucket a counter can reach.
	TopBucket = Bucket128Up
)

var classes [256]byte

func init() {
	for v := 0; v < 256; v++ {
		var b byte
		switch {
		case v == 0:
			b = BucketNone
		case v == 1:
			b = Bucket1
		case v == 2:
			b = Bucket2
		case v == 3:
			b = Bucket3
		case v <= 7:
			b = Bucket4to7
		case v <= 15:
			b = Bucket8to15
		case v <= 31:
			b = Bucket16to31
		case v <= 127:
			b = Bucket32to127
		default:
			b = Bucket128Up
		}
		classes[v] = b
	}
}

// Classify maps a raw counter value to its hitcount bucket.
func Classify(v byte) byte {
	return classes[v]
}
