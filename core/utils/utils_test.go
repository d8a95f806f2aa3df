package utils

import "fmt"

func Example_makeSaveableFileName() {
	fmt.Println(MakeSaveableFileName("Ki-67 (run 2)"))
	fmt.Println(MakeSaveableFileName("HE 4um/Section 3"))
	fmt.Println(MakeSaveableFileName("biopsy #12"))
	fmt.Println(MakeSaveableFileName("tumor margin @40x"))

	// Output:
	// Ki-67 (run 2)
	// HE 4um Section 3
	// biopsy  12
	// tumor margin  40x
}

func Example_clampF64() {
	fmt.Println(ClampF64(5.5, 0.0, 10.0))
	fmt.Println(ClampF64(-2.0, 0.0, 10.0))
	fmt.Println(ClampF64(11.0, 0.0, 10.0))

	// Output:
	// 5.5
	// 0
	// 10
}
