package imgbuf

import (
	"errors"
	"image"

	"golang.org/x/image/draw"
)

var (
	ErrEmptyRaster   = errors.New("raster is empty")
	ErrBadDimensions = errors.New("raster dimensions are invalid")
	ErrBadChannel    = errors.New("raster channel out of range")
)

// 8位交错存储的像素缓冲区（RGB通道顺序），NoData为空时按0处理
type Raster struct {
	Width    int
	Height   int
	Channels int
	Pix      []byte
	NoData   *byte
}

func New(width, height, channels int) *Raster {
	if width < 0 || height < 0 || channels < 0 {
		width, height, channels = 0, 0, 0
	}
	return &Raster{
		Width:    width,
		Height:   height,
		Channels: channels,
		Pix:      make([]byte, width*height*channels),
	}
}

func (r *Raster) Empty() bool {
	return r == nil || r.Width <= 0 || r.Height <= 0 || r.Channels <= 0 || len(r.Pix) < r.Width*r.Height*r.Channels
}

func (r *Raster) NoDataValue() byte {
	if r.NoData != nil {
		return *r.NoData
	}
	return 0
}

func (r *Raster) Stride() int {
	return r.Width * r.Channels
}

func (r *Raster) Offset(x, y int) int {
	return y*r.Width*r.Channels + x*r.Channels
}

func (r *Raster) At(x, y, c int) byte {
	return r.Pix[r.Offset(x, y)+c]
}

func (r *Raster) Set(x, y, c int, v byte) {
	r.Pix[r.Offset(x, y)+c] = v
}

func (r *Raster) Bounds() image.Rectangle {
	return image.Rect(0, 0, r.Width, r.Height)
}

func (r *Raster) Clone() *Raster {
	if r == nil {
		return nil
	}
	c := &Raster{Width: r.Width, Height: r.Height, Channels: r.Channels, NoData: r.NoData}
	c.Pix = append([]byte(nil), r.Pix...)
	return c
}

// 取出单个通道（行优先连续存储）
func (r *Raster) Channel(c int) (band []byte, err error) {
	if r.Empty() {
		err = ErrEmptyRaster
		return
	}
	if c < 0 || c >= r.Channels {
		err = ErrBadChannel
		return
	}
	n := r.Width * r.Height
	band = make([]byte, n)
	for i := 0; i < n; i++ {
		band[i] = r.Pix[i*r.Channels+c]
	}
	return
}

// 由多个单通道缓冲区合成交错存储的栅格
func Merge(width, height int, bands ...[]byte) (r *Raster, err error) {
	n := width * height
	if width <= 0 || height <= 0 || len(bands) == 0 {
		err = ErrBadDimensions
		return
	}
	for _, b := range bands {
		if len(b) != n {
			err = ErrBadDimensions
			return
		}
	}
	r = New(width, height, len(bands))
	for c, b := range bands {
		for i, v := range b {
			r.Pix[i*len(bands)+c] = v
		}
	}
	return
}

// 转灰度（与OpenCV RGB2GRAY权重一致）
func (r *Raster) Gray() (g *Raster, err error) {
	if r.Empty() {
		err = ErrEmptyRaster
		return
	}
	if r.Channels == 1 {
		g = r.Clone()
		return
	}
	g = New(r.Width, r.Height, 1)
	n := r.Width * r.Height
	for i := 0; i < n; i++ {
		p := r.Pix[i*r.Channels:]
		if r.Channels < 3 {
			g.Pix[i] = p[0]
			continue
		}
		// 定点运算，避免浮点累积误差
		g.Pix[i] = byte((4899*uint32(p[0]) + 9617*uint32(p[1]) + 1868*uint32(p[2]) + 8192) >> 14)
	}
	return
}

// 是否为单一颜色（空白）影像
func (r *Raster) IsUniform() bool {
	if r.Empty() {
		return true
	}
	first := r.Pix[:r.Channels]
	for i := r.Channels; i < len(r.Pix); i += r.Channels {
		for c := 0; c < r.Channels; c++ {
			if r.Pix[i+c] != first[c] {
				return false
			}
		}
	}
	return true
}

// image.Image转为RGB栅格，透明像素按预乘结果变为0（nodata）
func FromImage(img image.Image) *Raster {
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	r := New(b.Dx(), b.Dy(), 3)
	for y := 0; y < r.Height; y++ {
		src := rgba.Pix[y*rgba.Stride:]
		dst := r.Pix[y*r.Stride():]
		for x := 0; x < r.Width; x++ {
			copy(dst[x*3:x*3+3], src[x*4:x*4+3])
		}
	}
	return r
}

func (r *Raster) ToImage() (img *image.RGBA, err error) {
	if r.Empty() {
		err = ErrEmptyRaster
		return
	}
	img = image.NewRGBA(r.Bounds())
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			o := img.PixOffset(x, y)
			switch r.Channels {
			case 1, 2:
				v := r.At(x, y, 0)
				img.Pix[o], img.Pix[o+1], img.Pix[o+2] = v, v, v
			default:
				img.Pix[o], img.Pix[o+1], img.Pix[o+2] = r.At(x, y, 0), r.At(x, y, 1), r.At(x, y, 2)
			}
			img.Pix[o+3] = 0xff
		}
	}
	return
}
