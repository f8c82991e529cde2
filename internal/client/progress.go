package client

import (
	"io"

	"github.com/metcalfc/pdfjson/internal/upload"
)

// progressReader reports cumulative bytes read from the request body.
type progressReader struct {
	r     io.Reader
	sent  int64
	total int64
	fn    upload.ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		p.fn(p.sent, p.total)
	}
	return n, err
}
