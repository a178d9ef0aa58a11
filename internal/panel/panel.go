// Package panel describes the fixed set of monochrome LCD panels the GameSense
// service can drive, and the wire names derived from their geometry.
package panel

import (
	"fmt"
	"strings"
)

// Variant identifies one supported hardware panel.
type Variant int

const (
	// Keyboard is the Apex 7 / Apex Pro family OLED.
	Keyboard Variant = iota
	// WirelessHeadset is the Arctis Pro Wireless base station.
	WirelessHeadset
	// WiredHeadset is the GameDAC / Arctis Pro wired DAC.
	WiredHeadset
	// Mouse is the Rival 700 / 710.
	Mouse
)

// Dimensions is a panel size in pixels. Both sides of every supported panel
// are multiples of 8.
type Dimensions struct {
	Width  int
	Height int
}

// ByteLen is the size of a packed 1bpp bitmap for these dimensions.
func (d Dimensions) ByteLen() int {
	return d.Width * d.Height / 8
}

// Aligned reports whether the bitmap packs into whole bytes with no padding.
func (d Dimensions) Aligned() bool {
	return d.Width > 0 && d.Height > 0 && (d.Width*d.Height)%8 == 0
}

func (d Dimensions) String() string {
	return fmt.Sprintf("%dx%d", d.Width, d.Height)
}

var dimensions = [...]Dimensions{
	Keyboard:        {Width: 128, Height: 40},
	WirelessHeadset: {Width: 128, Height: 48},
	WiredHeadset:    {Width: 128, Height: 52},
	Mouse:           {Width: 128, Height: 36},
}

var names = [...]string{
	Keyboard:        "keyboard",
	WirelessHeadset: "wireless-headset",
	WiredHeadset:    "wired-headset",
	Mouse:           "mouse",
}

var aliases = map[string]Variant{
	"apex":    Keyboard,
	"arctis":  WirelessHeadset,
	"gamedac": WiredHeadset,
	"rival":   Mouse,
}

// All returns every supported variant in a stable order.
func All() []Variant {
	return []Variant{Keyboard, WirelessHeadset, WiredHeadset, Mouse}
}

// Valid reports whether v is one of the known variants.
func (v Variant) Valid() bool {
	return v >= Keyboard && v <= Mouse
}

// Dimensions returns the pixel size of the panel. An unknown variant yields
// the zero value.
func (v Variant) Dimensions() Dimensions {
	if !v.Valid() {
		return Dimensions{}
	}
	return dimensions[v]
}

// DeviceType is the handler device-type used when binding, e.g. "screened-128x40".
func (v Variant) DeviceType() string {
	return "screened-" + v.Dimensions().String()
}

// FrameKey is the key of this panel's image inside an event frame,
// e.g. "image-data-128x40".
func (v Variant) FrameKey() string {
	return "image-data-" + v.Dimensions().String()
}

func (v Variant) String() string {
	if !v.Valid() {
		return fmt.Sprintf("variant(%d)", int(v))
	}
	return names[v]
}

// ParseVariant accepts the canonical names returned by String as well as the
// product family aliases (apex, arctis, gamedac, rival). Matching is
// case-insensitive.
func ParseVariant(s string) (Variant, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for _, v := range All() {
		if names[v] == key {
			return v, nil
		}
	}
	if v, ok := aliases[key]; ok {
		return v, nil
	}
	return 0, fmt.Errorf("panel: unknown variant %q", s)
}

// ParseList parses a list of variant names, dropping duplicates while
// keeping first-seen order.
func ParseList(list []string) ([]Variant, error) {
	out := make([]Variant, 0, len(list))
	seen := make(map[Variant]bool, len(list))
	for _, s := range list {
		v, err := ParseVariant(s)
		if err != nil {
			return nil, err
		}
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out, nil
}
