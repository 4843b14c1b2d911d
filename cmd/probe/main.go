// Command probe estimates project effort from a CSV of historical projects.
//
//	probe describe --data datos_tutorial.csv
//	probe fit --data datos_tutorial.csv
//	probe estimate --data datos_tutorial.csv --size 289700 --confidence 0.95
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
