// SPDX-License-Identifier: Apache-2.0
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/fatih/color"

	"hantei/internal/artifact"
	"hantei/internal/bytecode"
	"hantei/internal/config"
	"hantei/internal/evaluator"
	"hantei/internal/frontend"
	"hantei/internal/herrors"
	"hantei/internal/jsonflow"
	"hantei/internal/obslog"
	"hantei/internal/optimizer"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "eval":
		err = runEval(os.Args[2:])
	case "compile":
		err = runCompile(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		color.Red("✗ %s", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("Usage: hantei <eval|compile> [flags]")
	fmt.Println("  hantei eval -recipe r.json -qualities q.json -data d.json [-compiled r.hnti] [-config hantei.yaml]")
	fmt.Println("  hantei compile -recipe r.json -qualities q.json -out r.hnti [-config hantei.yaml]")
}

// runEval compiles (or loads a precompiled artifact for) a recipe and
// evaluates it against one sample-data document, printing the winning
// quality or "no quality triggered" (spec §6).
func runEval(args []string) error {
	fs := flag.NewFlagSet("eval", flag.ExitOnError)
	recipePath := fs.String("recipe", "", "path to the recipe JSON document")
	qualitiesPath := fs.String("qualities", "", "path to the qualities JSON document")
	dataPath := fs.String("data", "", "path to the sample-data JSON document")
	compiledPath := fs.String("compiled", "", "optional path to a precompiled CompiledRecipe artifact (skips -recipe/-qualities)")
	configPath := fs.String("config", "", "optional path to a hantei.yaml configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dataPath == "" {
		return fmt.Errorf("eval: -data is required")
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	log := obslog.New(obslog.Default(), "hantei-cli")

	var prog *bytecode.Program
	var opt *optimizer.Program
	if *compiledPath != "" {
		f, err := os.Open(*compiledPath)
		if err != nil {
			return fmt.Errorf("eval: opening %s: %w", *compiledPath, err)
		}
		defer f.Close()
		prog, err = artifact.Load(f)
		if err != nil {
			return reportCompilationErr(err)
		}
	} else {
		if *recipePath == "" || *qualitiesPath == "" {
			return fmt.Errorf("eval: -recipe and -qualities are required unless -compiled is given")
		}
		compiled, optimized, err := compileRecipe(*recipePath, *qualitiesPath, &cfg, log)
		if err != nil {
			return reportCompilationErr(err)
		}
		prog, opt = compiled, optimized
	}

	dataBytes, err := os.ReadFile(*dataPath)
	if err != nil {
		return fmt.Errorf("eval: reading %s: %w", *dataPath, err)
	}
	sample, err := jsonflow.ParseSampleData(dataBytes)
	if err != nil {
		return reportCompilationErr(err)
	}
	statics, dynamic := jsonflow.ConvertSampleData(sample)
	dynData := evaluator.DynamicData(dynamic)

	var result evaluator.Result
	if cfg.Evaluator.Backend == config.BackendInterpreter {
		if opt == nil {
			return fmt.Errorf("eval: the interpreter backend needs -recipe/-qualities, not -compiled")
		}
		result, err = evaluator.NewInterpreterEvaluator(opt).WithLogger(log).Evaluate(statics, dynData)
	} else {
		result, err = evaluator.NewBytecodeEvaluator(prog).WithLogger(log).Evaluate(statics, dynData)
	}
	if err != nil {
		log.EvaluationError(err)
		return reportEvaluationErr(err)
	}

	if result.QualityName == nil {
		color.Yellow("— %s", result.Reason)
		return nil
	}
	color.Green("✓ %s (priority %d): %s", *result.QualityName, *result.QualityPriority, result.Reason)
	return nil
}

// runCompile compiles a recipe to a CompiledRecipe artifact on disk, so a
// later `eval -compiled` can skip the frontend and optimizer entirely (spec
// §6).
func runCompile(args []string) error {
	fs := flag.NewFlagSet("compile", flag.ExitOnError)
	recipePath := fs.String("recipe", "", "path to the recipe JSON document")
	qualitiesPath := fs.String("qualities", "", "path to the qualities JSON document")
	outPath := fs.String("out", "", "path to write the compiled artifact to")
	configPath := fs.String("config", "", "optional path to a hantei.yaml configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *recipePath == "" || *qualitiesPath == "" || *outPath == "" {
		return fmt.Errorf("compile: -recipe, -qualities, and -out are required")
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	log := obslog.New(obslog.Default(), "hantei-cli")
	prog, _, err := compileRecipe(*recipePath, *qualitiesPath, &cfg, log)
	if err != nil {
		return reportCompilationErr(err)
	}

	out, err := os.Create(*outPath)
	if err != nil {
		return fmt.Errorf("compile: creating %s: %w", *outPath, err)
	}
	defer out.Close()
	if err := artifact.Save(out, prog); err != nil {
		return fmt.Errorf("compile: writing %s: %w", *outPath, err)
	}

	color.Green("✓ compiled %d qualities to %s", len(prog.Paths), *outPath)
	return nil
}

// compileRecipe runs recipe+qualities through the full frontend/optimizer/
// backend pipeline, returning both the compiled bytecode.Program and the
// optimizer.Program it was compiled from (the latter only needed by the
// interpreter backend).
func compileRecipe(recipePath, qualitiesPath string, cfg *config.Config, log *obslog.Logger) (*bytecode.Program, *optimizer.Program, error) {
	recipeBytes, err := os.ReadFile(recipePath)
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", recipePath, err)
	}
	qualitiesBytes, err := os.ReadFile(qualitiesPath)
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", qualitiesPath, err)
	}

	recipe, err := jsonflow.ParseRecipe(recipeBytes)
	if err != nil {
		return nil, nil, err
	}
	qualities, err := jsonflow.ParseQualities(qualitiesBytes)
	if err != nil {
		return nil, nil, err
	}

	def, err := jsonflow.ConvertRecipe(recipe, qualities)
	if err != nil {
		return nil, nil, err
	}

	lowered, err := frontend.Build(def)
	if err != nil {
		return nil, nil, err
	}

	paths := make([]optimizer.Path, len(lowered))
	for i, qe := range lowered {
		paths[i] = optimizer.Path{Quality: qe.Quality, Expr: qe.Expr}
	}
	opt := optimizer.NewProgram(paths)

	optimizer.NewPipeline().WithPassCap(cfg.Optimizer.PassCap).WithLogger(log).Run(opt)

	prog, err := bytecode.CompileWithBudget(opt, cfg.Evaluator.RegisterBudget)
	if err != nil {
		return nil, nil, err
	}
	return prog, opt, nil
}

func reportCompilationErr(err error) error {
	if ce, ok := err.(*herrors.CompilationError); ok {
		fmt.Print(herrors.NewReporter().Format(ce))
		return fmt.Errorf("compilation failed")
	}
	return err
}

func reportEvaluationErr(err error) error {
	if ee, ok := err.(*herrors.EvaluationError); ok {
		fmt.Print(herrors.NewReporter().FormatEvaluation(ee))
		return fmt.Errorf("evaluation aborted")
	}
	return err
}
