// Command vggsummary prints the layer plan of a VGG preset. Given a corpus
// directory it scores the first sample, after optionally training for a few
// epochs on the corpus.
package main

import (
	"flag"
	"fmt"
	"strings"

	"github.com/Noofbiz/galaxyzoo/datasets"
	"github.com/Noofbiz/galaxyzoo/vgg"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

func main() {
	klog.InitFlags(nil)
	defer klog.Flush()

	presetName := flag.String("preset", "vgg16", "network preset: vgg11, vgg11_nopool, vgg13, vgg16 or vgg19")
	batchNorm := flag.Bool("bn", false, "insert batch normalization after every convolution")
	poolingName := flag.String("pooling", "max", "pooling type: 'max' or 'avg'")
	inChannels := flag.Int("in", 5, "number of image bands")
	numClasses := flag.Int("classes", 6, "number of output classes")
	height := flag.Int("height", 128, "input height used for the output shape check")
	width := flag.Int("width", 128, "input width used for the output shape check")
	dir := flag.String("dir", "", "if set, load this corpus and score its first sample")
	minDims := flag.Int("min", 0, "minimum accepted image height when loading -dir")
	maxDims := flag.Int("max", 128, "maximum accepted image height when loading -dir")
	labels := flag.String("labels", "", "comma-separated label attributes; their count must equal -classes to train")
	epochs := flag.Int("epochs", 0, "if > 0, train on -dir for this many epochs before scoring (needs a backend with convolution gradients)")
	batchSize := flag.Int("batch-size", 8, "training batch size")
	learningRate := flag.Float64("learning-rate", 0.001, "learning rate for training")
	optimizer := flag.String("optimizer", "adam", "optimizer to use for training: 'adam' or 'sgd'")
	seed := flag.Int64("seed", 0, "shuffle seed for training (0 = time based)")
	flag.Parse()

	preset, err := vgg.ParsePreset(*presetName)
	if err != nil {
		klog.Fatalf("%v", err)
	}
	pooling, err := vgg.ParsePooling(*poolingName)
	if err != nil {
		klog.Fatalf("%v", err)
	}
	model, err := vgg.New(vgg.Config{
		Preset:     preset,
		InChannels: *inChannels,
		BatchNorm:  *batchNorm,
		Pooling:    pooling,
		NumClasses: *numClasses,
	})
	if err != nil {
		klog.Fatalf("failed to create model: %v", err)
	}
	fmt.Print(model)

	shape, err := model.OutputShape(1, *inChannels, *height, *width)
	if err != nil {
		klog.Fatalf("%v", err)
	}
	fmt.Printf("input [1, %d, %d, %d] -> output %v\n", *inChannels, *height, *width, shape)

	if *dir == "" {
		return
	}
	ds, err := datasets.NewHDF5Dataset(datasets.Config{
		Dir:          *dir,
		MinPixelDims: *minDims,
		MaxPixelDims: *maxDims,
		Pad:          true,
		LabelKeys:    splitList(*labels),
		BatchSize:    *batchSize,
	})
	if err != nil {
		klog.Fatalf("failed to load dataset: %v", err)
	}
	sample, _, err := ds.Example(0)
	if err != nil {
		klog.Fatalf("%v", err)
	}

	var predictor *vgg.Predictor
	if *epochs > 0 {
		trainer, err := vgg.NewTrainer(model, vgg.TrainConfig{
			Epochs:       *epochs,
			LearningRate: *learningRate,
			Optimizer:    *optimizer,
			Seed:         *seed,
		}, nil, nil)
		if errors.Is(err, vgg.ErrBackendCannotTrain) {
			klog.Fatalf("cannot train with -epochs=%d: %v; rerun with -epochs=0 to score with initial weights", *epochs, err)
		}
		if err != nil {
			klog.Fatalf("failed to create trainer: %v", err)
		}
		history, err := trainer.Train(ds)
		if err != nil {
			klog.Fatalf("training failed: %v", err)
		}
		for ep, loss := range history {
			klog.Infof("epoch %d: loss=%.5f", ep, loss)
		}
		predictor, err = trainer.Predictor()
		if err != nil {
			klog.Fatalf("failed to create predictor: %v", err)
		}
	} else {
		predictor, err = vgg.NewPredictor(model, nil, nil)
		if err != nil {
			klog.Fatalf("failed to create predictor: %v", err)
		}
	}
	scores, err := predictor.Predict(sample.Data, 1, sample.Channels, sample.Height, sample.Width)
	if err != nil {
		klog.Fatalf("forward pass failed: %v", err)
	}
	fmt.Printf("first sample %s scores: %v\n", sample, scores[0])
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
