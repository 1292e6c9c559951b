package service

import (
	"encoding/json"
	"fmt"

	"github.com/freeeve/critical-mass/pkg/chain"
)

// LiveState is the authoritative in-flight game state kept in Redis and
// mirrored to clients over the websocket. Grid is the packed wire form, one
// byte per cell (owner<<5 | dots-1), base64 in JSON.
type LiveState struct {
	Width       uint8   `json:"width"`
	Height      uint8   `json:"height"`
	NumPlayers  uint8   `json:"num_players"`
	Grid        []byte  `json:"grid"`
	TurnNumber  int     `json:"turn_number"`
	CurrentSeat uint8   `json:"current_seat"`
	Eliminated  []uint8 `json:"eliminated,omitempty"`
}

// newLiveState builds the state for a freshly started game.
func newLiveState(g *chain.Grid) *LiveState {
	return &LiveState{
		Width:       g.Width(),
		Height:      g.Height(),
		NumPlayers:  g.PlayerCount(),
		Grid:        g.Pack(),
		CurrentSeat: 1,
	}
}

func decodeLiveState(raw json.RawMessage) (*LiveState, error) {
	if raw == nil {
		return nil, fmt.Errorf("no live state")
	}
	var st LiveState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("decode live state: %w", err)
	}
	return &st, nil
}

func (st *LiveState) encode() (json.RawMessage, error) {
	data, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("encode live state: %w", err)
	}
	return data, nil
}

// grid unpacks the wire bytes back into a simulatable board.
func (st *LiveState) grid() (*chain.Grid, error) {
	return chain.Unpack(st.Grid, st.Width, st.Height, st.NumPlayers)
}

func (st *LiveState) isEliminated(seat uint8) bool {
	for _, s := range st.Eliminated {
		if s == seat {
			return true
		}
	}
	return false
}

// aliveCount counts seats still in the game.
func (st *LiveState) aliveCount() int {
	return int(st.NumPlayers) - len(st.Eliminated)
}

// advanceSeat moves CurrentSeat to the next non-eliminated seat.
func (st *LiveState) advanceSeat() {
	for i := 0; i < int(st.NumPlayers); i++ {
		st.CurrentSeat = st.CurrentSeat%st.NumPlayers + 1
		if !st.isEliminated(st.CurrentSeat) {
			return
		}
	}
}
