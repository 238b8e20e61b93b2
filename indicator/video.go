//go:build screen

package indicator

import (
	"encoding/binary"
	"fmt"
	"image"
	"log"
	"os"

	"github.com/d21d3q/framebuffer"
	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"
)

const fontPath = "/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf"

// Video implements Indicator on a 16bpp framebuffer display.
type Video struct {
	dc              *gg.Context
	pixBuffer       []byte
	backBuffer      []byte
	rgbaImage       *image.RGBA
	width           int
	height          int
	lineLengthBytes int
	linkDown        bool
	initialized     bool
}

// NewVideo opens /dev/fb0.
func NewVideo() (*Video, error) {
	fb, err := framebuffer.OpenFrameBuffer("/dev/fb0", os.O_RDWR)
	if err != nil {
		return nil, fmt.Errorf("open framebuffer: %w", err)
	}

	varInfo, err := fb.VarScreenInfo()
	if err != nil {
		return nil, fmt.Errorf("get variable screen info: %w", err)
	}
	fixedInfo, err := fb.FixScreenInfo()
	if err != nil {
		return nil, fmt.Errorf("get fixed screen info: %w", err)
	}

	v := &Video{
		width:           int(varInfo.XRes),
		height:          int(varInfo.YRes),
		lineLengthBytes: int(fixedInfo.LineLength),
	}
	v.pixBuffer, err = fb.Pixels()
	if err != nil {
		return nil, fmt.Errorf("get pixel data: %w", err)
	}
	v.backBuffer = make([]byte, v.height*v.lineLengthBytes)

	log.Printf("Video: framebuffer %dx%d, %d bpp, stride %d bytes",
		v.width, v.height, varInfo.BitsPerPixel, v.lineLengthBytes)

	v.rgbaImage = image.NewRGBA(image.Rect(0, 0, v.width, v.height))
	v.dc = gg.NewContextForRGBA(v.rgbaImage)
	v.initialized = true
	v.clear()
	return v, nil
}

func (v *Video) clear() {
	for i := range v.pixBuffer {
		v.pixBuffer[i] = 0
	}
}

// update converts the RGBA canvas to RGB565 and copies it to the display.
func (v *Video) update() {
	for y := 0; y < v.height; y++ {
		for x := 0; x < v.width; x++ {
			r, g, b, _ := v.rgbaImage.At(x, y).RGBA()
			pixel16 := uint16(r>>11)<<11 | uint16(g>>10)<<5 | uint16(b>>11)
			fbIdx := y*v.lineLengthBytes + x*2
			if fbIdx+1 < len(v.backBuffer) {
				binary.LittleEndian.PutUint16(v.backBuffer[fbIdx:], pixel16)
			}
		}
	}
	copy(v.pixBuffer, v.backBuffer)
}

func (v *Video) setFontSize(size int) {
	if err := v.dc.LoadFontFace(fontPath, float64(size)); err != nil {
		log.Printf("Video: failed to load font, using fixed face: %v", err)
		v.dc.SetFontFace(basicfont.Face7x13)
	}
}

// panel fills the screen with one color and centers text on it.
func (v *Video) panel(text string, r, g, b float64) {
	if !v.initialized {
		return
	}
	v.dc.SetRGB(r, g, b)
	v.dc.DrawRectangle(0, 0, float64(v.width), float64(v.height))
	v.dc.Fill()

	v.setFontSize(64)
	v.dc.SetRGB(1, 1, 1)
	v.dc.DrawStringAnchored(text, float64(v.width/2), float64(v.height/2), 0.5, 0.5)
	v.update()
}

// Idle implements Indicator.Idle.
func (v *Video) Idle() {
	if v.linkDown {
		v.panel("Connection Lost", 0.5, 0.3, 0)
		return
	}
	v.panel("Present Card", 0, 0, 0.3)
}

// Granted implements Indicator.Granted.
func (v *Video) Granted() {
	v.linkDown = false
	v.panel("Access Granted", 0, 0.7, 0)
}

// Denied implements Indicator.Denied.
func (v *Video) Denied() {
	v.linkDown = false
	v.panel("Access Denied", 0.7, 0, 0)
}

// Alert implements Indicator.Alert.
func (v *Video) Alert(on bool) {
	if on {
		v.panel("Error", 1, 0, 0)
		return
	}
	v.panel("Error", 0.3, 0, 0)
}

// ConnectionLost implements Indicator.ConnectionLost.
func (v *Video) ConnectionLost() {
	v.linkDown = true
	v.Idle()
}

// Shutdown implements Indicator.Shutdown.
func (v *Video) Shutdown() {
	if !v.initialized {
		return
	}
	v.clear()
}

// Release implements Indicator.Release.
func (v *Video) Release() error {
	v.clear()
	v.initialized = false
	return nil
}
