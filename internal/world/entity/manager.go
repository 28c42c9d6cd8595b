package entity

import (
	"sort"
	"sync"
	"time"
)

// PeerManager чужие игроки по ID сервера. Пополняется снимком при входе
// и сообщениями join/leave, позиции обновляет ping.
type PeerManager struct {
	mu    sync.RWMutex
	peers map[int]*Peer
}

func NewPeerManager() *PeerManager {
	return &PeerManager{peers: make(map[int]*Peer)}
}

// Add регистрирует игрока; повторный join с тем же ID заменяет запись
func (pm *PeerManager) Add(p *Peer) {
	pm.mu.Lock()
	pm.peers[p.ID] = p
	pm.mu.Unlock()
}

// Remove false, если игрок не был известен
func (pm *PeerManager) Remove(id int) bool {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	_, known := pm.peers[id]
	delete(pm.peers, id)
	return known
}

func (pm *PeerManager) Get(id int) (*Peer, bool) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	p, ok := pm.peers[id]
	return p, ok
}

// List игроки по возрастанию ID, для отрисовки в стабильном порядке
func (pm *PeerManager) List() []*Peer {
	pm.mu.RLock()
	out := make([]*Peer, 0, len(pm.peers))
	for _, p := range pm.peers {
		out = append(out, p)
	}
	pm.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (pm *PeerManager) Len() int {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return len(pm.peers)
}

// Clear после разрыва соединения
func (pm *PeerManager) Clear() {
	pm.mu.Lock()
	pm.peers = make(map[int]*Peer)
	pm.mu.Unlock()
}

// InterpolateAll двигает каждого игрока к последней присланной позиции
func (pm *PeerManager) InterpolateAll(now time.Time) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	for _, p := range pm.peers {
		p.Interpolate(now)
	}
}
