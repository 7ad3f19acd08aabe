package content

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/gzip"
)

// maybeGunzip decompresses data if it carries a gzip magic header,
// otherwise returns it unchanged. Quantized-mesh terrain tiles are
// conventionally gzipped on the wire (§2 "stitch raster overlays and
// implicitly-described subtrees"; the source format is gzip-or-not
// depending on server configuration).
func maybeGunzip(data []byte) ([]byte, error) {
	if len(data) < 2 || data[0] != 0x1f || data[1] != 0x8b {
		return data, nil
	}
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
