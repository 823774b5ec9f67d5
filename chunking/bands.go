package chunking

// Band maps a range of document lengths to chunking parameters.
// MaxLength is exclusive; zero means unbounded.
type Band struct {
	Name      string
	MaxLength int
	ChunkSize int
	Overlap   int
}

// DefaultBands are ordered by MaxLength with non-decreasing ChunkSize and
// Overlap, so a longer document never gets smaller chunks.
var DefaultBands = []Band{
	{Name: "small", MaxLength: 50_000, ChunkSize: 1000, Overlap: 200},
	{Name: "medium", MaxLength: 200_000, ChunkSize: 1500, Overlap: 300},
	{Name: "large", MaxLength: 1_000_000, ChunkSize: 2000, Overlap: 400},
	{Name: "xlarge", MaxLength: 0, ChunkSize: 3000, Overlap: 500},
}

// Params are the chunking parameters for one document.
// Lengths are measured in runes.
type Params struct {
	Band      string
	ChunkSize int
	Overlap   int
}

// SelectParams returns the parameters of the default band for a document
// of the given length in runes.
func SelectParams(length int) Params {
	return SelectParamsFrom(DefaultBands, length)
}

// SelectParamsFrom returns the parameters of the first band in bands whose
// MaxLength exceeds length. The last band catches everything else.
func SelectParamsFrom(bands []Band, length int) Params {
	if len(bands) == 0 {
		bands = DefaultBands
	}
	for _, b := range bands {
		if b.MaxLength == 0 || length < b.MaxLength {
			return b.params()
		}
	}
	return bands[len(bands)-1].params()
}

func (b Band) params() Params {
	return Params{Band: b.Name, ChunkSize: b.ChunkSize, Overlap: b.Overlap}
}

// normalized clamps nonsensical parameters into a usable shape.
func (p Params) normalized() Params {
	if p.ChunkSize < 2 {
		p.ChunkSize = 2
	}
	if p.Overlap < 0 {
		p.Overlap = 0
	}
	if p.Overlap >= p.ChunkSize-1 {
		p.Overlap = p.ChunkSize / 5
	}
	return p
}
