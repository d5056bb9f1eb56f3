package vm

import "math"

func sinF(x float64) float64  { return math.Sin(x) }
func cosF(x float64) float64  { return math.Cos(x) }
func expF(x float64) float64  { return math.Exp(x) }
func logF(x float64) float64  { return math.Log(x) }
func sqrtF(x float64) float64 { return math.Sqrt(x) }
func atanF(x float64) float64 { return math.Atan(x) }
