package block

import (
	"github.com/annel0/tileworld/internal/inventory"
	"github.com/annel0/tileworld/internal/vec"
)

// Host определяет интерфейс, через который поведения блоков взаимодействуют
// с окружением (клиентской сессией или сервером). Сервер использует
// пустую реализацию NopHost.
type Host interface {
	// OpenContainer просит окружение показать модель крафта блока в позиции pos.
	OpenContainer(pos vec.Vec2, craft *inventory.CraftModel)

	// IsServer сообщает, выполняется ли хук на авторитетном сервере.
	IsServer() bool
}

// Holder владелец выбранного предмета (игрок), на которого влияют хуки выбора.
type Holder interface {
	// AdjustMineSpeed изменяет скорость добычи на delta.
	AdjustMineSpeed(delta float64)
}

// NopHost окружение без побочных эффектов
type NopHost struct {
	Server bool
}

// OpenContainer ничего не делает
func (NopHost) OpenContainer(vec.Vec2, *inventory.CraftModel) {}

// IsServer возвращает значение поля Server
func (h NopHost) IsServer() bool { return h.Server }
