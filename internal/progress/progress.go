package progress

import (
	"io"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// Copy streams src into dst. With a non-nil out it renders a byte progress bar
// named after the transfer; total <= 0 means the size is unknown.
func Copy(dst io.Writer, src io.Reader, total int64, name string, out io.Writer) (int64, error) {
	if out == nil {
		return io.Copy(dst, src)
	}

	container := mpb.New(
		mpb.WithOutput(out),
		mpb.WithRefreshRate(120*time.Millisecond),
	)
	bar := container.AddBar(total,
		mpb.PrependDecorators(
			decor.Name(name+" ", decor.WC{W: len(name) + 1, C: decor.DindentRight}),
			decor.CountersKibiByte("% .1f / % .1f", decor.WCSyncWidth),
		),
		mpb.AppendDecorators(
			decor.OnComplete(
				decor.EwmaSpeed(decor.SizeB1024(0), "% .1f", 30, decor.WCSyncSpace), " ✓ ",
			),
		),
	)

	reader := bar.ProxyReader(src)
	n, err := io.Copy(dst, reader)
	_ = reader.Close()
	if err != nil {
		bar.Abort(false)
	} else {
		bar.SetTotal(-1, true)
	}
	container.Wait()
	return n, err
}
