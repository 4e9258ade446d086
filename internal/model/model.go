package model

import "gonum.org/v1/gonum/mat"

// Image geometry of the digits the networks produce and consume.
const (
	ImgRows   = 28
	ImgCols   = 28
	Channels  = 1
	ImageSize = ImgRows * ImgCols * Channels
)

// StepResult is what a discriminator update reports.
type StepResult struct {
	Loss     float64
	Accuracy float64
}

// Adversarial defines the training functionality the loop drives.
type Adversarial interface {
	LatentDim() int
	Generate(noise *mat.Dense) *mat.Dense
	TrainDiscriminator(images *mat.Dense, label float64) StepResult
	TrainGenerator(noise *mat.Dense) float64
}
