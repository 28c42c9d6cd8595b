package noise

// Разложение Pi/4 на три части для приведения аргумента
const (
	pi4A       = 7.85398125648498535156e-1
	pi4B       = 3.77489470793079817668e-8
	pi4C       = 2.69515142907905952645e-15
	fourOverPi = 1.2732395447351628
)

// Коэффициенты многочленов Cephes для sin и cos на [-Pi/4, Pi/4]
var (
	sinCoef = [6]float64{
		1.58962301576546568060e-10,
		-2.50507477628578072866e-8,
		2.75573136213857245213e-6,
		-1.98412698295895385996e-4,
		8.33333333332211858878e-3,
		-1.66666666666666307295e-1,
	}
	cosCoef = [6]float64{
		-1.13585365213876817300e-11,
		2.08757008419747316778e-9,
		-2.75573141792967388112e-7,
		2.48015872888517045348e-5,
		-1.38888888888730564116e-3,
		4.16666666666665929218e-2,
	}
)

// cosine косинус для |x| < 2^19. Совпадает с math.Cos в пределах 1 ulp,
// но каждое округление задано явно и одинаково на всех архитектурах.
func cosine(x float64) float64 {
	if x < 0 {
		x = -x
	}

	j := uint64(x * fourOverPi)
	y := float64(j)
	if j&1 == 1 {
		j++
		y++
	}
	j &= 7
	z := float64(float64(x-float64(y*pi4A))-float64(y*pi4B)) - float64(y*pi4C)

	sign := false
	if j > 3 {
		j -= 4
		sign = !sign
	}
	if j > 1 {
		sign = !sign
	}

	zz := float64(z * z)
	var r float64
	if j == 1 || j == 2 {
		r = z + float64(float64(z*zz)*horner(&sinCoef, zz))
	} else {
		r = float64(1.0-float64(0.5*zz)) + float64(float64(zz*zz)*horner(&cosCoef, zz))
	}
	if sign {
		r = -r
	}
	return r
}

// horner значение многочлена c в точке zz, старший коэффициент первым
func horner(c *[6]float64, zz float64) float64 {
	p := c[0]
	for _, k := range c[1:] {
		p = float64(p*zz) + k
	}
	return p
}
