package main

import (
	"github.com/eleven-am/careervoice/internal/bootstrap"
)

func main() {
	bootstrap.Run()
}
