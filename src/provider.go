package dfs

import (
	"sync"
)

// StaticProvider is a ChannelProvider for a radio whose channel is set
// from outside, as in dfsd and in replays.  The callbacks run on the
// sweep goroutine.
type StaticProvider struct {
	mu         sync.Mutex
	ch         Channel
	caps       Capabilities
	extBusy    int
	params     PhyErrParams
	extEnabled bool
	enables    int

	OnRadar func(Channel)
	OnNOL   func([]NOLEntry)
}

func NewStaticProvider(ch Channel, caps Capabilities) *StaticProvider {
	return &StaticProvider{ch: ch, caps: caps, extBusy: extChanBusyInvalid}
}

func (p *StaticProvider) CurrentChannel() Channel {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.ch
}

// SetChannel changes channel.  The engine's RadarEnable must be called
// afterwards.
func (p *StaticProvider) SetChannel(ch Channel) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.ch = ch
}

func (p *StaticProvider) Capabilities() Capabilities {
	return p.caps
}

func (p *StaticProvider) EnableRadar(params PhyErrParams, extChan bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.params = params
	p.extEnabled = extChan
	p.enables++

	return nil
}

// Programmed returns what the last EnableRadar asked for.
func (p *StaticProvider) Programmed() (PhyErrParams, bool, int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.params, p.extEnabled, p.enables
}

// SetExtChannelBusy sets the extension channel load in percent, or -1 for
// no reading.
func (p *StaticProvider) SetExtChannelBusy(busy int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.extBusy = busy
}

func (p *StaticProvider) ExtChannelBusy() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.extBusy
}

func (p *StaticProvider) RadarFound(ch Channel) {
	if p.OnRadar != nil {
		p.OnRadar(ch)
	}
}

func (p *StaticProvider) UpdateChannelList(nol []NOLEntry) {
	if p.OnNOL != nil {
		p.OnNOL(nol)
	}
}
