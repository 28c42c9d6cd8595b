package world

import (
	"fmt"
	"sync"

	"github.com/annel0/tileworld/internal/light"
	"github.com/annel0/tileworld/internal/logging"
	"github.com/annel0/tileworld/internal/physics"
	"github.com/annel0/tileworld/internal/vec"
	"github.com/annel0/tileworld/internal/world/block"
)

// BlockListener получает уведомления о применённых изменениях блоков
type BlockListener interface {
	BlockChanged(pos vec.Vec2, state *block.State)
}

// SaveData сохранённое состояние мира
type SaveData struct {
	Seed    int64                        `json:"seed"`
	Changes map[int]map[int]block.Record `json:"changes"`
}

// WorldManager владеет картой изменений, генератором и (на клиенте) окном с освещением.
// Все изменения мира проходят через его методы; хуки поведения вызываются вне блокировки.
type WorldManager struct {
	mu        sync.RWMutex
	generator *Generator
	changes   *ChangeMap
	view      *Viewport // nil на сервере
	engine    *light.Engine
	host      block.Host
	listener  BlockListener
	logger    *logging.Logger
}

// NewWorldManager создаёт менеджер мира без окна (серверный режим)
func NewWorldManager(seed int64) *WorldManager {
	return &WorldManager{
		generator: NewGenerator(seed),
		changes:   NewChangeMap(),
		host:      block.NopHost{Server: true},
		logger:    logging.GetWorldLogger(),
	}
}

// AttachViewport добавляет окно viewWidth × viewHeight с запасом margin.
// Окно материализуется первым вызовом Materialize или Recenter.
func (wm *WorldManager) AttachViewport(viewWidth, viewHeight, margin int) {
	wm.mu.Lock()
	defer wm.mu.Unlock()
	wm.view = newViewport(viewWidth, viewHeight, margin)
	w, h := wm.view.Size()
	wm.engine = light.NewEngine(w, h, MaxHeight, MinHeight)
	if nop, ok := wm.host.(block.NopHost); ok && nop.Server {
		wm.host = block.NopHost{}
	}
}

// SetHost задаёт окружение для хуков поведения блоков
func (wm *WorldManager) SetHost(h block.Host) {
	wm.mu.Lock()
	wm.host = h
	wm.mu.Unlock()
}

// SetBlockListener задаёт получателя уведомлений об изменениях
func (wm *WorldManager) SetBlockListener(l BlockListener) {
	wm.mu.Lock()
	wm.listener = l
	wm.mu.Unlock()
}

// Seed текущий сид мира
func (wm *WorldManager) Seed() int64 {
	wm.mu.RLock()
	defer wm.mu.RUnlock()
	return wm.generator.Seed()
}

// GroundHeight высота поверхности столбца
func (wm *WorldManager) GroundHeight(wx int) int {
	wm.mu.RLock()
	defer wm.mu.RUnlock()
	return wm.generator.GroundHeight(wx)
}

// PlayerStart Y появления игрока над столбцом x
func (wm *WorldManager) PlayerStart(x int) int {
	wm.mu.RLock()
	defer wm.mu.RUnlock()
	return wm.generator.PlayerStart(x)
}

// Classify природный тип клетки (карта изменений не учитывается)
func (wm *WorldManager) Classify(wx, wy int) string {
	wm.mu.RLock()
	defer wm.mu.RUnlock()
	return wm.generator.Classify(wx, wy)
}

// Get возвращает блок в любой точке мира: клетку окна, если она в нём,
// иначе одноразово материализованный блок.
func (wm *WorldManager) Get(wx, wy int) *block.State {
	wm.mu.RLock()
	defer wm.mu.RUnlock()
	return wm.get(wx, wy)
}

func (wm *WorldManager) get(wx, wy int) *block.State {
	if wm.view != nil {
		if lx, ly, ok := wm.view.ToLocal(wx, wy); ok {
			return wm.view.Cell(lx, ly)
		}
	}
	if s, ok := wm.changes.Get(wx, wy); ok {
		return s
	}
	return block.MustState(wm.generator.Classify(wx, wy), vec.Vec2{X: wx, Y: wy})
}

// Change возвращает запись карты изменений
func (wm *WorldManager) Change(wx, wy int) (*block.State, bool) {
	wm.mu.RLock()
	defer wm.mu.RUnlock()
	return wm.changes.Get(wx, wy)
}

// Changes число записей в карте изменений
func (wm *WorldManager) Changes() int {
	wm.mu.RLock()
	defer wm.mu.RUnlock()
	return wm.changes.Len()
}

// Center центр окна; нулевой вектор без окна
func (wm *WorldManager) Center() vec.Vec2 {
	wm.mu.RLock()
	defer wm.mu.RUnlock()
	if wm.view == nil {
		return vec.Vec2{}
	}
	return wm.view.Center()
}

// Viewport возвращает окно; читать только под собственной синхронизацией вызывающего
func (wm *WorldManager) Viewport() *Viewport {
	wm.mu.RLock()
	defer wm.mu.RUnlock()
	return wm.view
}

// Materialize полностью перестраивает окно вокруг (cx, cy): высоты и деревья,
// классификация, наложение изменений, физический индекс, потолки и свет.
func (wm *WorldManager) Materialize(cx, cy int) {
	wm.mu.Lock()
	defer wm.mu.Unlock()
	wm.materialize(cx, cy)
}

func (wm *WorldManager) materialize(cx, cy int) {
	v := wm.view
	if v == nil {
		return
	}
	v.center = vec.Vec2{X: cx, Y: cy}
	v.built = true
	o := v.Origin()
	cols := wm.generator.columns(o.X, o.X+v.width-1, o.Y)

	v.phys = make(map[vec.Vec2]*block.State)
	for lx := 0; lx < v.width; lx++ {
		wx := o.X + lx
		v.ground[lx] = cols.height(wx)
		for ly := 0; ly < v.height; ly++ {
			wy := o.Y + ly
			s, ok := wm.changes.Get(wx, wy)
			if !ok {
				s = block.MustState(wm.generator.classify(cols, wx, wy), vec.Vec2{X: wx, Y: wy})
			}
			v.set(lx, ly, s)
		}
	}

	for lx := 0; lx < v.width; lx++ {
		wm.engine.RecalcCeiling(lx, wm.opaqueFunc(cols, o.X+lx))
	}
	wm.engine.Calculate(v)
	wm.logger.Debug("Окно перестроено вокруг (%d, %d), твёрдых блоков: %d", cx, cy, v.PhysicalCount())
}

// opaqueFunc предикат непрозрачности столбца wx для поиска потолка:
// запись карты изменений, иначе природная классификация.
func (wm *WorldManager) opaqueFunc(cols *columns, wx int) func(wy int) bool {
	full := *cols
	full.marks = true
	return func(wy int) bool {
		if s, ok := wm.changes.Get(wx, wy); ok {
			return !s.Transparent
		}
		t, ok := block.Lookup(wm.generator.classify(&full, wx, wy))
		return ok && !t.Transparent
	}
}

// Recenter перестраивает окно, если игрок отошёл от центра на половину запаса.
// Возвращает true, если окно было перестроено.
func (wm *WorldManager) Recenter(px, py int) bool {
	wm.mu.Lock()
	defer wm.mu.Unlock()
	v := wm.view
	if v == nil {
		return false
	}
	half := v.margin / 2
	if v.built && vec.Abs(px-v.center.X) < half && vec.Abs(py-v.center.Y) < half {
		return false
	}
	wm.materialize(px, py)
	return true
}

// Apply записывает блок в карту изменений и, если клетка в окне, обновляет
// окно, потолок столбца и освещение. Затем вызывает OnPlace поведения типа.
func (wm *WorldManager) Apply(wx, wy int, state *block.State) {
	wm.mu.Lock()
	state.WorldPos = vec.Vec2{X: wx, Y: wy}
	wm.changes.Set(wx, wy, state)

	if v := wm.view; v != nil {
		if lx, ly, ok := v.ToLocal(wx, wy); ok {
			was := v.Cell(lx, ly)
			v.set(lx, ly, state)
			if !state.Transparent {
				wm.engine.LowerCeiling(lx, wy)
			} else if !was.Transparent {
				wm.engine.RecalcCeiling(lx, wm.opaqueFunc(wm.generator.columns(wx, wx, wy), wx))
			}
			wm.engine.Calculate(v)
		}
	}
	host, listener := wm.host, wm.listener
	wm.mu.Unlock()

	block.BehaviorFor(state.Type).OnPlace(host, state)
	if listener != nil {
		listener.BlockChanged(vec.Vec2{X: wx, Y: wy}, state)
	}
}

// Tick вызывает OnTick для клеток окна, а без окна для записей карты изменений
func (wm *WorldManager) Tick() {
	wm.mu.RLock()
	var cells []*block.State
	if v := wm.view; v != nil && v.built {
		for _, row := range v.cells {
			cells = append(cells, row...)
		}
	} else {
		wm.changes.Each(func(_, _ int, s *block.State) {
			cells = append(cells, s)
		})
	}
	host := wm.host
	wm.mu.RUnlock()

	for _, s := range cells {
		block.BehaviorFor(s.Type).OnTick(host, s)
	}
}

// Light освещённость клетки окна; 0 вне окна
func (wm *WorldManager) Light(wx, wy int) float64 {
	wm.mu.RLock()
	defer wm.mu.RUnlock()
	if wm.view == nil {
		return 0
	}
	lx, ly, ok := wm.view.ToLocal(wx, wy)
	if !ok {
		return 0
	}
	return wm.engine.Light(lx, ly)
}

// LightGrid копия сетки освещённости [ly][lx]
func (wm *WorldManager) LightGrid() [][]float64 {
	wm.mu.RLock()
	defer wm.mu.RUnlock()
	if wm.engine == nil {
		return nil
	}
	src := wm.engine.Grid()
	out := make([][]float64, len(src))
	for i, row := range src {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

// Ceiling потолок столбца окна по мировой X
func (wm *WorldManager) Ceiling(wx int) (int, bool) {
	wm.mu.RLock()
	defer wm.mu.RUnlock()
	if wm.view == nil {
		return 0, false
	}
	lx, _, ok := wm.view.ToLocal(wx, wm.view.center.Y)
	if !ok {
		return 0, false
	}
	return wm.engine.Ceiling(lx), true
}

// IsSolid сообщает, твёрд ли блок в точке; используется проверкой столкновений
func (wm *WorldManager) IsSolid(pos vec.Vec2) bool {
	wm.mu.RLock()
	defer wm.mu.RUnlock()
	if wm.view != nil {
		if _, _, ok := wm.view.ToLocal(pos.X, pos.Y); ok {
			_, solid := wm.view.phys[pos]
			return solid
		}
	}
	return wm.get(pos.X, pos.Y).IsPhys
}

// PhysicalIn твёрдые блоки окна, пересекающие прямоугольник
func (wm *WorldManager) PhysicalIn(r physics.Rect) []*block.State {
	wm.mu.RLock()
	defer wm.mu.RUnlock()
	if wm.view == nil {
		return nil
	}
	return wm.view.PhysicalIn(r)
}

// Save сериализует сид и карту изменений
func (wm *WorldManager) Save() SaveData {
	wm.mu.RLock()
	defer wm.mu.RUnlock()
	return SaveData{
		Seed:    wm.generator.Seed(),
		Changes: wm.changes.Records(),
	}
}

// Load заменяет сид и карту изменений. Материализованное окно перестраивается.
func (wm *WorldManager) Load(data SaveData) error {
	changes, err := changeMapFromRecords(data.Changes)
	if err != nil {
		return fmt.Errorf("загрузка мира: %w", err)
	}

	wm.mu.Lock()
	defer wm.mu.Unlock()
	wm.generator = NewGenerator(data.Seed)
	wm.changes = changes
	if wm.view != nil && wm.view.built {
		wm.materialize(wm.view.center.X, wm.view.center.Y)
	}
	wm.logger.Info("Мир загружен: сид %d, изменений %d", data.Seed, changes.Len())
	return nil
}
