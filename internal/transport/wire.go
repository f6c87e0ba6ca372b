package transport

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"openfilter/internal/frame"
)

// imageFlag marks whether a topic record carries an image payload.
type imageFlag byte

const (
	imageAbsent imageFlag = iota
	imagePresent
)

// WriteTick serializes one tick to w: msgID, topic count, then per topic the
// topic name, the encoded meta+data blob, and the optional image payload.
// Image payload is written separately from metadata so a reader that does
// not want the image can skip those bytes with io.CopyN to io.Discard.
func WriteTick(w io.Writer, t *Tick) error {
	if err := binary.Write(w, binary.BigEndian, t.MsgID); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint32(len(t.Set))); err != nil {
		return err
	}
	for topic, f := range t.Set {
		if err := writeString(w, topic); err != nil {
			return fmt.Errorf("transport: write topic %q: %w", topic, err)
		}
		if err := writeFrameEnvelope(w, f); err != nil {
			return fmt.Errorf("transport: write frame %q: %w", topic, err)
		}
	}
	return nil
}

// writeFrameEnvelope writes one frame's metadata/data/image record.
func writeFrameEnvelope(w io.Writer, f *frame.Frame) error {
	metaBytes, err := frame.EncodeMetaBytes(f.Meta)
	if err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint32(len(metaBytes))); err != nil {
		return err
	}
	if _, err := w.Write(metaBytes); err != nil {
		return err
	}

	var dataBuf bytes.Buffer
	if err := frame.EncodeMap(&dataBuf, map[string]any(f.Data)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint32(dataBuf.Len())); err != nil {
		return err
	}
	if _, err := w.Write(dataBuf.Bytes()); err != nil {
		return err
	}

	if !f.HasImage() {
		return binary.Write(w, binary.BigEndian, byte(imageAbsent))
	}
	if err := binary.Write(w, binary.BigEndian, byte(imagePresent)); err != nil {
		return err
	}
	if err := writeString(w, string(f.Image.Format)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint32(f.Image.Width)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint32(f.Image.Height)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint32(f.Image.Channels)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint32(len(f.Image.Raw))); err != nil {
		return err
	}
	_, err = w.Write(f.Image.Raw)
	return err
}

// ReadTick deserializes one tick from r. wantTopic, when non-nil, is consulted
// per record: when it returns false the image bytes for that topic are
// discarded without being decoded into memory.
func ReadTick(r *bufio.Reader, wantTopic func(topic string) bool) (*Tick, error) {
	var msgID uint64
	if err := binary.Read(r, binary.BigEndian, &msgID); err != nil {
		return nil, err
	}
	var count uint32
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, err
	}

	set := make(frame.Set, count)
	for i := uint32(0); i < count; i++ {
		topic, err := readString(r)
		if err != nil {
			return nil, fmt.Errorf("transport: read topic: %w", err)
		}
		want := wantTopic == nil || wantTopic(topic)
		f, err := readFrameEnvelope(r, want)
		if err != nil {
			return nil, fmt.Errorf("transport: read frame %q: %w", topic, err)
		}
		if want {
			set[topic] = f
		}
	}
	return &Tick{MsgID: msgID, Set: set}, nil
}

// readFrameEnvelope reads one frame record. When want is false, the image
// bytes are skipped via io.CopyN rather than copied into a Frame.
func readFrameEnvelope(r *bufio.Reader, want bool) (*frame.Frame, error) {
	var metaLen uint32
	if err := binary.Read(r, binary.BigEndian, &metaLen); err != nil {
		return nil, err
	}
	metaBytes := make([]byte, metaLen)
	if _, err := io.ReadFull(r, metaBytes); err != nil {
		return nil, err
	}

	var dataLen uint32
	if err := binary.Read(r, binary.BigEndian, &dataLen); err != nil {
		return nil, err
	}
	dataBytes := make([]byte, dataLen)
	if _, err := io.ReadFull(r, dataBytes); err != nil {
		return nil, err
	}

	var flag byte
	if err := binary.Read(r, binary.BigEndian, &flag); err != nil {
		return nil, err
	}

	var img *frame.Image
	if imageFlag(flag) == imagePresent {
		formatStr, err := readString(r)
		if err != nil {
			return nil, err
		}
		var width, height, channels, rawLen uint32
		if err := binary.Read(r, binary.BigEndian, &width); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.BigEndian, &height); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.BigEndian, &channels); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.BigEndian, &rawLen); err != nil {
			return nil, err
		}
		if !want {
			if _, err := io.CopyN(io.Discard, r, int64(rawLen)); err != nil {
				return nil, err
			}
		} else {
			raw := make([]byte, rawLen)
			if _, err := io.ReadFull(r, raw); err != nil {
				return nil, err
			}
			img = &frame.Image{Format: frame.Format(formatStr), Width: int(width), Height: int(height), Channels: int(channels), Raw: raw}
		}
	}

	if !want {
		return nil, nil
	}

	meta, err := frame.DecodeMetaBytes(metaBytes)
	if err != nil {
		return nil, err
	}
	dataMap, err := frame.DecodeMap(bytes.NewReader(dataBytes))
	if err != nil {
		return nil, err
	}
	return frame.New(img, meta, frame.Data(dataMap)), nil
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.BigEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := w.Write([]byte(s))
	return err
}

func readString(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
