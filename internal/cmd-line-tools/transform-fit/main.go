// Licensed to SlideScope under one or more contributor
// license agreements. See the NOTICE file distributed with
// this work for additional information regarding copyright
// ownership. SlideScope licenses this file to you under
// the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

// Fits a WSI->stage transform from a JSON file of calibration point pairs and
// prints the result, same maths the daemon runs for POST /transform-fit
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/slidescope/core/core/transform"
	"github.com/slidescope/core/core/utils"
)

var pairsPath string
var toleranceUM float64

func main() {
	flag.StringVar(&pairsPath, "pairs", "", "Path to JSON file holding an array of point pairs: [{\"source\": {\"x\":..,\"y\":..}, \"dest\": {..}}, ...]")
	flag.Float64Var(&toleranceUM, "tolerance", 0, "Residual tolerance in stage um, 0 to skip validation")

	flag.Parse()

	if len(pairsPath) <= 0 {
		log.Fatalf("Parameter: pairs was empty")
	}

	data, err := os.ReadFile(pairsPath)
	if err != nil {
		log.Fatalf("Failed to read %v: %v", pairsPath, err)
	}

	pairs := []transform.PointPair{}
	if err := json.Unmarshal(data, &pairs); err != nil {
		log.Fatalf("Failed to parse %v: %v", pairsPath, err)
	}

	fit, err := transform.FitAffine(pairs)
	if err != nil {
		log.Fatalf("Fit failed: %v", err)
	}

	output := map[string]interface{}{"transform": fit}

	if toleranceUM > 0 {
		report, err := transform.Validate(fit, pairs, toleranceUM)
		if err != nil {
			log.Fatalf("Validation failed: %v", err)
		}
		output["report"] = report

		if !report.WithinBounds {
			fmt.Fprintf(os.Stderr, "WARNING: worst residual %.3fum exceeds tolerance %.3fum (pair %v)\n",
				report.WorstErrorUM, toleranceUM, report.WorstPairIdx)
		}
	}

	outJSON, err := json.MarshalIndent(output, "", utils.PrettyPrintIndentForJSON)
	if err != nil {
		log.Fatalf("Failed to format output: %v", err)
	}
	fmt.Println(string(outJSON))
}
