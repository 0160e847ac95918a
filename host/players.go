package host

import (
	ekcore "github.com/EclipseEmu/eclipsekit/api"
)

// players tracks which player indices are connected and their last inputs.
type players struct {
	max       uint8
	behavior  ekcore.PlayerConnectionBehavior
	connected []bool
	inputs    []ekcore.Input
}

func newPlayers(max uint8, behavior ekcore.PlayerConnectionBehavior) *players {
	return &players{
		max:       max,
		behavior:  behavior,
		connected: make([]bool, max),
		inputs:    make([]ekcore.Input, max),
	}
}

func (p *players) count() int {
	n := 0
	for _, c := range p.connected {
		if c {
			n++
		}
	}
	return n
}

func (p *players) inRange(player uint8) bool {
	return player < p.max
}

func (p *players) isConnected(player uint8) bool {
	return p.inRange(player) && p.connected[player]
}

// nextLinear is the only index a linear core accepts for a new player.
func (p *players) nextLinear() uint8 {
	return uint8(p.count())
}

func (p *players) connect(player uint8) {
	p.connected[player] = true
	p.inputs[player] = ekcore.InputNone
}

// disconnect removes a player and returns the index the core should be told
// about plus the players whose inputs moved and must be re-sent.
func (p *players) disconnect(player uint8) (notify uint8, moved []uint8) {
	if p.behavior != ekcore.ConnectLinear {
		p.connected[player] = false
		p.inputs[player] = ekcore.InputNone
		return player, nil
	}

	last := uint8(p.count() - 1)
	for i := player; i < last; i++ {
		p.inputs[i] = p.inputs[i+1]
		moved = append(moved, i)
	}
	p.connected[last] = false
	p.inputs[last] = ekcore.InputNone
	return last, moved
}
