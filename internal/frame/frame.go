package frame

// Format identifies the pixel layout of a frame's image payload.
type Format string

const (
	// FormatBGR is an 8-bit interleaved BGR image.
	FormatBGR Format = "BGR"
	// FormatRGB is an 8-bit interleaved RGB image.
	FormatRGB Format = "RGB"
	// FormatGray is a single-channel grayscale image.
	FormatGray Format = "GRAY"
	// FormatJPG is an opaque, already-encoded JPEG byte stream.
	FormatJPG Format = "JPG"
	// FormatNone indicates the frame carries no image payload.
	FormatNone Format = ""
)

// MetaTimestampKey is the metadata key carrying the frame's wall-clock send time.
const MetaTimestampKey = "ts"

// MetaIDKey is the metadata key carrying the optional upstream frame ID.
const MetaIDKey = "id"

// Image holds a decoded pixel payload or an opaque encoded (JPG) byte string.
// Width/Height/Channels are zero for FormatJPG, where Raw holds the encoded bytes.
type Image struct {
	Format   Format
	Width    int
	Height   int
	Channels int
	Raw      []byte // row-major pixel data, or opaque bytes when Format == FormatJPG
}

// HasImage reports whether the image carries a non-empty payload.
func (img *Image) HasImage() bool {
	return img != nil && len(img.Raw) > 0
}

// Clone returns a deep copy of the image payload so a worker may mutate it
// without affecting the frame it was cloned from (frames are immutable once published).
func (img *Image) Clone() *Image {
	if img == nil {
		return nil
	}
	raw := make([]byte, len(img.Raw))
	copy(raw, img.Raw)
	return &Image{Format: img.Format, Width: img.Width, Height: img.Height, Channels: img.Channels, Raw: raw}
}

// Meta is the metadata mapping attached to every frame; it always carries at
// least MetaTimestampKey and optionally MetaIDKey.
type Meta map[string]any

// Clone returns a shallow copy of the metadata mapping.
func (m Meta) Clone() Meta {
	if m == nil {
		return nil
	}
	out := make(Meta, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Data is the arbitrary data mapping a filter attaches to its output.
type Data map[string]any

// Clone returns a shallow copy of the data mapping.
func (d Data) Clone() Data {
	if d == nil {
		return nil
	}
	out := make(Data, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Frame is the value tuple flowing through one topic in one tick: an optional
// image, a metadata mapping, and an arbitrary data mapping. Frames are
// immutable once published; a worker may Clone one before republishing.
type Frame struct {
	Image *Image
	Meta  Meta
	Data  Data
}

// New constructs a Frame from an optional image, a metadata map, and a data map.
// A nil meta is replaced with an empty map so MetaTimestampKey can always be set.
func New(img *Image, meta Meta, data Data) *Frame {
	if meta == nil {
		meta = Meta{}
	}
	if data == nil {
		data = Data{}
	}
	return &Frame{Image: img, Meta: meta, Data: data}
}

// HasImage reports whether the frame carries a non-empty image payload.
func (f *Frame) HasImage() bool {
	return f != nil && f.Image.HasImage()
}

// Format returns the frame's image format, or FormatNone if it has no image.
func (f *Frame) Format() Format {
	if !f.HasImage() {
		return FormatNone
	}
	return f.Image.Format
}

// Timestamp returns the frame's meta.ts value, or zero if absent or malformed.
func (f *Frame) Timestamp() float64 {
	v, ok := f.Meta[MetaTimestampKey]
	if !ok {
		return 0
	}
	ts, _ := v.(float64)
	return ts
}

// ID returns the frame's meta.id value and whether it was present.
func (f *Frame) ID() (int64, bool) {
	v, ok := f.Meta[MetaIDKey]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

// Clone returns a cheap shallow copy of the frame: the image payload is deep
// copied (so pixel mutation is safe) while meta/data maps are shallow copied.
func (f *Frame) Clone() *Frame {
	if f == nil {
		return nil
	}
	return &Frame{
		Image: f.Image.Clone(),
		Meta:  f.Meta.Clone(),
		Data:  f.Data.Clone(),
	}
}

// Set is a topic -> frame mapping delivered atomically to a single process() tick.
type Set map[string]*Frame

// Clone returns a shallow copy of the frame set (the map itself, not the frames).
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
