// Package noise реализует детерминированный хэш-шум значений (value noise)
// с косинусной интерполяцией и суммой октав. Одинаковый seed даёт побитово
// одинаковые значения в любом процессе.
//
// Все произведения, за которыми следует сложение, обёрнуты в float64(...):
// явное преобразование запрещает компилятору сливать их в FMA (arm64,
// ppc64le, s390x), и результат не зависит от архитектуры. По той же
// причине вместо math.Cos и math.Pow используются cosine и умножение
// в цикле.
package noise

// Значения по умолчанию для одномерной суммы октав (высота поверхности)
const (
	HeightOctaves = 3
	HeightAmp     = 0.6
	HeightZoom    = 0.01
	HeightFreq    = 1.5
)

// Значения по умолчанию для двумерной суммы октав (руды)
const (
	FieldOctaves = 3
	FieldAmp     = 0.0035
	FieldZoom    = 0.075
	FieldFreq    = 1.5
)

// Generator генерирует шум для заданного seed
type Generator struct {
	Seed int64
}

// New создаёт генератор шума
func New(seed int64) *Generator {
	return &Generator{Seed: seed}
}

// Lattice1 возвращает значение решётки для целой точки x.
// Арифметика int64 с переполнением: младшие 31 бит совпадают с точным результатом.
func (g *Generator) Lattice1(x int64) float64 {
	x += g.Seed
	n := (x << 13) ^ x
	return 1.0 - float64((n*(n*n*15731+789221)+1376312589)&0x7fffffff)/1073741824.0
}

// Lattice2 возвращает значение двумерной решётки. Seed участвует и в хэше,
// и как множитель вместо константы 15731.
func (g *Generator) Lattice2(x, y int64) float64 {
	n := x + y*57 + g.Seed
	n = (n << 13) ^ n
	return 1.0 - float64((n*(n*n*g.Seed+789221)+1376312589)&0x7fffffff)/1073741824.0
}

// CosInterpolate косинусная интерполяция между a и b
func CosInterpolate(a, b, x float64) float64 {
	ft := x * 3.1415927
	f := (1 - cosine(ft)) * 0.5
	return float64(a*(1-f)) + float64(b*f)
}

func (g *Generator) interpolate1(x float64) float64 {
	ix := int64(x) // усечение к нулю
	frac := x - float64(ix)
	return CosInterpolate(g.Lattice1(ix), g.Lattice1(ix+1), frac)
}

func (g *Generator) interpolate2(x, y float64) float64 {
	ix := int64(x)
	fx := x - float64(ix)
	iy := int64(y)
	fy := y - float64(iy)

	v11 := g.Lattice2(ix, iy)
	v12 := g.Lattice2(ix+1, iy)
	v13 := g.Lattice2(ix, iy+1)
	v14 := g.Lattice2(ix+1, iy+1)
	i1 := CosInterpolate(v11, v12, fx)
	i2 := CosInterpolate(v13, v14, fx)
	return CosInterpolate(i1, i2, fy)
}

// Noise1D сумма октав одномерного шума
func (g *Generator) Noise1D(x int, octaves int, amp, zoom, freq float64) float64 {
	res := 0.0
	frequency, amplitude := 1.0, 1.0
	for i := 0; i < octaves; i++ {
		res += float64(g.interpolate1(float64(x)*frequency*zoom) * amplitude)
		frequency *= freq
		amplitude *= amp
	}
	return res
}

// Noise2D сумма октав двумерного шума
func (g *Generator) Noise2D(x, y int, octaves int, amp, zoom, freq float64) float64 {
	res := 0.0
	frequency, amplitude := 1.0, 1.0
	for i := 0; i < octaves; i++ {
		res += float64(g.interpolate2(float64(x)*frequency*zoom, float64(y)*frequency*zoom) * amplitude)
		frequency *= freq
		amplitude *= amp
	}
	return res
}

// Height одномерный шум с параметрами по умолчанию
func (g *Generator) Height(x int) float64 {
	return g.Noise1D(x, HeightOctaves, HeightAmp, HeightZoom, HeightFreq)
}

// Field двумерный шум с параметрами по умолчанию
func (g *Generator) Field(x, y int) float64 {
	return g.Noise2D(x, y, FieldOctaves, FieldAmp, FieldZoom, FieldFreq)
}
