/*
Copyright 2011-2024 Frederic Langlet
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
you may obtain a copy of the License at

                http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/eneskuluk/htscodecs/rans"
)

const (
	_APP_HEADER     = "rANS 4x8 block codec"
	_ARG_COMPRESS   = "--compress"
	_ARG_DECOMPRESS = "--decompress"
	_ARG_INPUT      = "--input="
	_ARG_OUTPUT     = "--output="
	_ARG_ORDER      = "--order="
	_ARG_HELP       = "--help"
)

func usage() {
	fmt.Println(_APP_HEADER)
	fmt.Println("")
	fmt.Println("Usage: ransapp [--compress|--decompress] [OPTIONS]")
	fmt.Println("")
	fmt.Println("   -c, --compress        compress the input file (default)")
	fmt.Println("   -d, --decompress      decompress the input file")
	fmt.Println("       --input=<file>    input file name (required)")
	fmt.Println("       --output=<file>   output file name (default: input + .rans,")
	fmt.Println("                         or input minus .rans when decompressing)")
	fmt.Println("   -0, --order=0         order 0 model: marginal byte frequencies")
	fmt.Println("   -1, --order=1         order 1 model: frequencies conditioned on")
	fmt.Println("                         the previous byte (default)")
	fmt.Println("   -h, --help            display this message")
}

func main() {
	compress := true
	order := 1
	inputName := ""
	outputName := ""

	for _, arg := range os.Args[1:] {
		arg = strings.TrimSpace(arg)

		switch {
		case arg == "-h" || arg == _ARG_HELP:
			usage()
			os.Exit(0)

		case arg == "-c" || arg == _ARG_COMPRESS:
			compress = true

		case arg == "-d" || arg == _ARG_DECOMPRESS:
			compress = false

		case arg == "-0" || arg == "-1":
			order = int(arg[1] - '0')

		case strings.HasPrefix(arg, _ARG_ORDER):
			o, err := strconv.Atoi(arg[len(_ARG_ORDER):])

			if err != nil || (o != 0 && o != 1) {
				fmt.Printf("Invalid model order: %s\n", arg[len(_ARG_ORDER):])
				os.Exit(1)
			}

			order = o

		case strings.HasPrefix(arg, _ARG_INPUT):
			inputName = arg[len(_ARG_INPUT):]

		case arg == "-i" || arg == "-o":
			long := _ARG_INPUT

			if arg == "-o" {
				long = _ARG_OUTPUT
			}

			fmt.Printf("Missing value for %s, use %s<file>\n", arg, long)
			os.Exit(1)

		case strings.HasPrefix(arg, _ARG_OUTPUT):
			outputName = arg[len(_ARG_OUTPUT):]

		default:
			fmt.Printf("Warning: ignoring unknown option [%s]\n", arg)
		}
	}

	if inputName == "" {
		fmt.Println("Missing input file name, exiting")
		usage()
		os.Exit(1)
	}

	if outputName == "" {
		if compress {
			outputName = inputName + ".rans"
		} else if strings.HasSuffix(inputName, ".rans") {
			outputName = strings.TrimSuffix(inputName, ".rans")
		} else {
			outputName = inputName + ".out"
		}
	}

	block, err := os.ReadFile(inputName)

	if err != nil {
		fmt.Printf("Cannot read input file '%s': %v\n", inputName, err)
		os.Exit(2)
	}

	var res []byte
	before := time.Now()

	if compress {
		res, err = rans.Compress(block, order)
	} else {
		res, err = rans.Decompress(block)
	}

	delta := time.Since(before)

	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(3)
	}

	if err = os.WriteFile(outputName, res, 0644); err != nil {
		fmt.Printf("Cannot write output file '%s': %v\n", outputName, err)
		os.Exit(2)
	}

	ms := delta.Milliseconds()
	fmt.Printf("Input size:       %d\n", len(block))
	fmt.Printf("Output size:      %d\n", len(res))

	if compress && len(block) > 0 {
		fmt.Printf("Compression ratio: %.6f\n", float64(len(res))/float64(len(block)))
	}

	fmt.Printf("Time elapsed:     %d ms\n", ms)

	if ms > 0 {
		fmt.Printf("Throughput:       %d KB/s\n", int64(len(block))*1000/(ms*1024))
	}
}
