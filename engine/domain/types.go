// Package domain holds the vocabulary shared by the engine packages: the "Drop"
// mapping target, sentinel errors and input validation.
package domain

// Drop marks a column that is left out of the graph.
const Drop = "Drop"

// Indicator11_2_1 is the indicator datasets are attached under.
const Indicator11_2_1 = "11.2.1"
