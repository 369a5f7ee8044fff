// Package filters provides the audio filter set applied to a Lavalink player.
package filters

import (
	"maps"
	"slices"

	"github.com/cockroachdb/errors"

	"github.com/osa030/lavabox/internal/domain/payload"
)

// ErrInvalidValue is returned when a filter value is outside of its domain.
var ErrInvalidValue = errors.New("invalid filter value")

// BandType is one of the 15 equalizer bands.
type BandType int

const (
	HZ25 BandType = iota
	HZ40
	HZ63
	HZ100
	HZ160
	HZ250
	HZ400
	HZ630
	HZ1K
	HZ1_6K
	HZ2_5K
	HZ4K
	HZ6_3K
	HZ10K
	HZ16K
)

// Valid reports whether the band exists.
func (b BandType) Valid() bool {
	return b >= HZ25 && b <= HZ16K
}

// Equalizer sets the gain of one band.
type Equalizer struct {
	Band BandType `json:"band"`
	Gain float64  `json:"gain"` // -0.25 to 1.0
}

// NewEqualizer validates and builds an equalizer band.
func NewEqualizer(band BandType, gain float64) (Equalizer, error) {
	if !band.Valid() {
		return Equalizer{}, errors.Wrapf(ErrInvalidValue, "band %d does not exist", band)
	}
	if gain < -0.25 || gain > 1.0 {
		return Equalizer{}, errors.Wrapf(ErrInvalidValue, "gain %v must be between -0.25 and 1.0", gain)
	}
	return Equalizer{Band: band, Gain: gain}, nil
}

// Karaoke eliminates part of a band, usually targeting vocals.
type Karaoke struct {
	Level       *float64 `json:"level,omitempty"`
	MonoLevel   *float64 `json:"monoLevel,omitempty"`
	FilterBand  *float64 `json:"filterBand,omitempty"`
	FilterWidth *float64 `json:"filterWidth,omitempty"`
}

// Timescale changes speed, pitch and rate.
type Timescale struct {
	Speed *float64 `json:"speed,omitempty"`
	Pitch *float64 `json:"pitch,omitempty"`
	Rate  *float64 `json:"rate,omitempty"`
}

// Tremolo oscillates the volume.
type Tremolo struct {
	Frequency *float64 `json:"frequency,omitempty"`
	Depth     *float64 `json:"depth,omitempty"`
}

// Vibrato oscillates the pitch.
type Vibrato struct {
	Frequency *float64 `json:"frequency,omitempty"`
	Depth     *float64 `json:"depth,omitempty"`
}

// Rotation pans the audio around the stereo channels.
type Rotation struct {
	RotationHz *float64 `json:"rotationHz,omitempty"`
}

// Distortion applies sine, cosine and tangent distortion.
type Distortion struct {
	SinOffset *float64 `json:"sinOffset,omitempty"`
	SinScale  *float64 `json:"sinScale,omitempty"`
	CosOffset *float64 `json:"cosOffset,omitempty"`
	CosScale  *float64 `json:"cosScale,omitempty"`
	TanOffset *float64 `json:"tanOffset,omitempty"`
	TanScale  *float64 `json:"tanScale,omitempty"`
	Offset    *float64 `json:"offset,omitempty"`
	Scale     *float64 `json:"scale,omitempty"`
}

// ChannelMix mixes the left and right channels.
type ChannelMix struct {
	LeftToLeft   *float64 `json:"leftToLeft,omitempty"`
	LeftToRight  *float64 `json:"leftToRight,omitempty"`
	RightToLeft  *float64 `json:"rightToLeft,omitempty"`
	RightToRight *float64 `json:"rightToRight,omitempty"`
}

// LowPass suppresses higher frequencies.
type LowPass struct {
	Smoothing *float64 `json:"smoothing,omitempty"`
}

// Filters is the full filter set of a player. Nil members are not sent.
type Filters struct {
	Volume        *float64       `json:"volume,omitempty"`
	Equalizer     []Equalizer    `json:"equalizer,omitempty"`
	Karaoke       *Karaoke       `json:"karaoke,omitempty"`
	Timescale     *Timescale     `json:"timescale,omitempty"`
	Tremolo       *Tremolo       `json:"tremolo,omitempty"`
	Vibrato       *Vibrato       `json:"vibrato,omitempty"`
	Rotation      *Rotation      `json:"rotation,omitempty"`
	Distortion    *Distortion    `json:"distortion,omitempty"`
	ChannelMix    *ChannelMix    `json:"channelMix,omitempty"`
	LowPass       *LowPass       `json:"lowPass,omitempty"`
	PluginFilters map[string]any `json:"pluginFilters,omitempty"`
}

// New returns an empty filter set.
func New() *Filters {
	return &Filters{}
}

// Decode builds Filters from a raw payload.
func Decode(data []byte) (*Filters, error) {
	f := New()
	if err := payload.Decode(data, f); err != nil {
		return nil, err
	}
	return f, nil
}

// Float returns a pointer to v, for building partial filter values.
func Float(v float64) *float64 {
	return &v
}

// Clone returns a deep copy.
func (f *Filters) Clone() *Filters {
	if f == nil {
		return nil
	}
	out := *f
	out.Volume = clonePtr(f.Volume)
	out.Equalizer = slices.Clone(f.Equalizer)
	out.Karaoke = clonePtr(f.Karaoke)
	out.Timescale = clonePtr(f.Timescale)
	out.Tremolo = clonePtr(f.Tremolo)
	out.Vibrato = clonePtr(f.Vibrato)
	out.Rotation = clonePtr(f.Rotation)
	out.Distortion = clonePtr(f.Distortion)
	out.ChannelMix = clonePtr(f.ChannelMix)
	out.LowPass = clonePtr(f.LowPass)
	out.PluginFilters = maps.Clone(f.PluginFilters)
	return &out
}

// SetVolume sets the filter volume. 1.0 is the unmodified level.
func (f *Filters) SetVolume(volume float64) error {
	if volume <= 0 {
		return errors.Wrapf(ErrInvalidValue, "volume %v must be above 0", volume)
	}
	f.Volume = &volume
	return nil
}

// ClearVolume removes the volume filter.
func (f *Filters) ClearVolume() {
	f.Volume = nil
}

// AddEqualizer sets the gain of a band, replacing any existing value for it.
func (f *Filters) AddEqualizer(band BandType, gain float64) error {
	eq, err := NewEqualizer(band, gain)
	if err != nil {
		return err
	}
	f.removeBand(band)
	f.Equalizer = append(f.Equalizer, eq)
	return nil
}

// RemoveEqualizer drops a band from the equalizer.
func (f *Filters) RemoveEqualizer(band BandType) error {
	if !f.removeBand(band) {
		return errors.Wrapf(ErrInvalidValue, "band %d is not set", band)
	}
	return nil
}

// ClearEqualizer drops every band.
func (f *Filters) ClearEqualizer() {
	f.Equalizer = nil
}

func (f *Filters) removeBand(band BandType) bool {
	before := len(f.Equalizer)
	f.Equalizer = slices.DeleteFunc(f.Equalizer, func(eq Equalizer) bool {
		return eq.Band == band
	})
	return len(f.Equalizer) != before
}

// SetKaraoke merges k into the karaoke filter.
func (f *Filters) SetKaraoke(k Karaoke) error {
	if err := unitRange("level", k.Level); err != nil {
		return err
	}
	if err := unitRange("monoLevel", k.MonoLevel); err != nil {
		return err
	}
	if f.Karaoke == nil {
		f.Karaoke = &Karaoke{}
	}
	merge(&f.Karaoke.Level, k.Level)
	merge(&f.Karaoke.MonoLevel, k.MonoLevel)
	merge(&f.Karaoke.FilterBand, k.FilterBand)
	merge(&f.Karaoke.FilterWidth, k.FilterWidth)
	return nil
}

// ClearKaraoke removes the karaoke filter.
func (f *Filters) ClearKaraoke() {
	f.Karaoke = nil
}

// SetTimescale merges t into the timescale filter.
func (f *Filters) SetTimescale(t Timescale) error {
	for name, v := range map[string]*float64{"speed": t.Speed, "pitch": t.Pitch, "rate": t.Rate} {
		if v != nil && *v < 0 {
			return errors.Wrapf(ErrInvalidValue, "timescale %s %v must be 0 or above", name, *v)
		}
	}
	if f.Timescale == nil {
		f.Timescale = &Timescale{}
	}
	merge(&f.Timescale.Speed, t.Speed)
	merge(&f.Timescale.Pitch, t.Pitch)
	merge(&f.Timescale.Rate, t.Rate)
	return nil
}

// ClearTimescale removes the timescale filter.
func (f *Filters) ClearTimescale() {
	f.Timescale = nil
}

// SetTremolo merges t into the tremolo filter.
func (f *Filters) SetTremolo(t Tremolo) error {
	if t.Frequency != nil && *t.Frequency <= 0 {
		return errors.Wrapf(ErrInvalidValue, "tremolo frequency %v must be above 0", *t.Frequency)
	}
	if t.Depth != nil && (*t.Depth <= 0 || *t.Depth > 1) {
		return errors.Wrapf(ErrInvalidValue, "tremolo depth %v must be above 0 and at most 1", *t.Depth)
	}
	if f.Tremolo == nil {
		f.Tremolo = &Tremolo{}
	}
	merge(&f.Tremolo.Frequency, t.Frequency)
	merge(&f.Tremolo.Depth, t.Depth)
	return nil
}

// ClearTremolo removes the tremolo filter.
func (f *Filters) ClearTremolo() {
	f.Tremolo = nil
}

// SetVibrato merges v into the vibrato filter.
func (f *Filters) SetVibrato(v Vibrato) error {
	if v.Frequency != nil && (*v.Frequency <= 0 || *v.Frequency > 14) {
		return errors.Wrapf(ErrInvalidValue, "vibrato frequency %v must be above 0 and at most 14", *v.Frequency)
	}
	if v.Depth != nil && (*v.Depth <= 0 || *v.Depth > 1) {
		return errors.Wrapf(ErrInvalidValue, "vibrato depth %v must be above 0 and at most 1", *v.Depth)
	}
	if f.Vibrato == nil {
		f.Vibrato = &Vibrato{}
	}
	merge(&f.Vibrato.Frequency, v.Frequency)
	merge(&f.Vibrato.Depth, v.Depth)
	return nil
}

// ClearVibrato removes the vibrato filter.
func (f *Filters) ClearVibrato() {
	f.Vibrato = nil
}

// SetRotation sets the rotation speed.
func (f *Filters) SetRotation(hz float64) {
	f.Rotation = &Rotation{RotationHz: &hz}
}

// ClearRotation removes the rotation filter.
func (f *Filters) ClearRotation() {
	f.Rotation = nil
}

// SetDistortion merges d into the distortion filter.
func (f *Filters) SetDistortion(d Distortion) {
	if f.Distortion == nil {
		f.Distortion = &Distortion{}
	}
	merge(&f.Distortion.SinOffset, d.SinOffset)
	merge(&f.Distortion.SinScale, d.SinScale)
	merge(&f.Distortion.CosOffset, d.CosOffset)
	merge(&f.Distortion.CosScale, d.CosScale)
	merge(&f.Distortion.TanOffset, d.TanOffset)
	merge(&f.Distortion.TanScale, d.TanScale)
	merge(&f.Distortion.Offset, d.Offset)
	merge(&f.Distortion.Scale, d.Scale)
}

// ClearDistortion removes the distortion filter.
func (f *Filters) ClearDistortion() {
	f.Distortion = nil
}

// SetChannelMix merges c into the channel mix filter.
func (f *Filters) SetChannelMix(c ChannelMix) error {
	for name, v := range map[string]*float64{
		"leftToLeft":   c.LeftToLeft,
		"leftToRight":  c.LeftToRight,
		"rightToLeft":  c.RightToLeft,
		"rightToRight": c.RightToRight,
	} {
		if err := unitRange(name, v); err != nil {
			return err
		}
	}
	if f.ChannelMix == nil {
		f.ChannelMix = &ChannelMix{}
	}
	merge(&f.ChannelMix.LeftToLeft, c.LeftToLeft)
	merge(&f.ChannelMix.LeftToRight, c.LeftToRight)
	merge(&f.ChannelMix.RightToLeft, c.RightToLeft)
	merge(&f.ChannelMix.RightToRight, c.RightToRight)
	return nil
}

// ClearChannelMix removes the channel mix filter.
func (f *Filters) ClearChannelMix() {
	f.ChannelMix = nil
}

// SetLowPass sets the low pass smoothing. Values of 1 or less disable the filter
// on the node, so they are rejected here.
func (f *Filters) SetLowPass(smoothing float64) error {
	if smoothing <= 1 {
		return errors.Wrapf(ErrInvalidValue, "low pass smoothing %v must be above 1", smoothing)
	}
	f.LowPass = &LowPass{Smoothing: &smoothing}
	return nil
}

// ClearLowPass removes the low pass filter.
func (f *Filters) ClearLowPass() {
	f.LowPass = nil
}

// SetPluginFilter sets the configuration of a plugin provided filter.
func (f *Filters) SetPluginFilter(name string, value any) {
	if f.PluginFilters == nil {
		f.PluginFilters = make(map[string]any)
	}
	f.PluginFilters[name] = value
}

// RemovePluginFilter drops a plugin provided filter.
func (f *Filters) RemovePluginFilter(name string) {
	delete(f.PluginFilters, name)
}

func unitRange(name string, v *float64) error {
	if v != nil && (*v < 0 || *v > 1) {
		return errors.Wrapf(ErrInvalidValue, "%s %v must be between 0 and 1", name, *v)
	}
	return nil
}

func merge(dst **float64, src *float64) {
	if src != nil {
		v := *src
		*dst = &v
	}
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
