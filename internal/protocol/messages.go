// Package protocol описывает сообщения синхронизации мира и их кадрирование.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/annel0/tileworld/internal/inventory"
	"github.com/annel0/tileworld/internal/world"
	"github.com/annel0/tileworld/internal/world/block"
	"github.com/annel0/tileworld/internal/world/entity"
)

// Теги запросов (поле request)
const (
	JoinRequestTag   = "join_request"
	JoinResponseTag  = "join_response"
	JoinTag          = "join"
	LeaveRequestTag  = "leave_request"
	LeaveTag         = "leave"
	PingTag          = "ping"
	PlaceBlockTag    = "place_block"
	DestroyBlockTag  = "destroy_block"
	BlockUpdateTag   = "block_update"
	SyncInventoryTag = "sync_inventory"
	SyncBlockTag     = "sync_block"
)

// Message конверт сообщения: тег и произвольные данные
type Message struct {
	Request string          `json:"request"`
	Data    json.RawMessage `json:"data"`
}

// NewMessage упаковывает данные в конверт
func NewMessage(request string, payload interface{}) (*Message, error) {
	if payload == nil {
		payload = struct{}{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("сериализация %s: %w", request, err)
	}
	return &Message{Request: request, Data: data}, nil
}

// Decode разбирает данные сообщения в v
func (m *Message) Decode(v interface{}) error {
	if len(m.Data) == 0 {
		return fmt.Errorf("%w: %s без данных", ErrMalformed, m.Request)
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformed, m.Request, err)
	}
	return nil
}

// JoinRequest запрос на вход
type JoinRequest struct {
	Name string `json:"name"`
}

// LevelSnapshot состояние мира, передаваемое при входе
type LevelSnapshot struct {
	ChunkController world.SaveData `json:"chunk_controller"`
	StartedTime     float64        `json:"started_time"`
}

// PeerInfo описание другого игрока
type PeerInfo struct {
	ID       int     `json:"id"`
	Name     string  `json:"name"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Selected string  `json:"selected"`
}

// JoinResponse ответ на вход. При отказе заполнены только Success и Reason.
type JoinResponse struct {
	Success     bool           `json:"success"`
	Reason      string         `json:"reason,omitempty"`
	ID          int            `json:"id,omitempty"`
	Level       *LevelSnapshot `json:"level,omitempty"`
	Players     []PeerInfo     `json:"players,omitempty"`
	PlayerData  *entity.Record `json:"player_data,omitempty"`
	StartedTime float64        `json:"started_time,omitempty"`
}

// Join рассылается остальным при входе игрока
type Join = PeerInfo

// Leave рассылается при выходе игрока
type Leave struct {
	ID int `json:"id"`
}

// Ping состояние игрока от клиента; Selected - индекс слота панели
type Ping struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Dir      int     `json:"dir"`
	Moving   bool    `json:"moving"`
	Selected int     `json:"selected"`
}

// PeerPing ретрансляция ping остальным; Selected - тип предмета или "None"
type PeerPing struct {
	ID       int     `json:"id"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Dir      int     `json:"dir"`
	Moving   bool    `json:"moving"`
	Selected string  `json:"selected"`
}

// BlockPos координаты для place_block и destroy_block
type BlockPos struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// BlockUpdate авторитетное состояние блока
type BlockUpdate struct {
	X     int          `json:"x"`
	Y     int          `json:"y"`
	Block block.Record `json:"block"`
}

// SyncInventory полный инвентарь клиента
type SyncInventory = inventory.Record

// SyncBlock содержимое внутреннего контейнера блока
type SyncBlock struct {
	X     int                  `json:"x"`
	Y     int                  `json:"y"`
	Block inventory.GridRecord `json:"block"`
}
