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

// Macro (overview) image handling. The macro camera photographs the whole
// slide before scanning, the slide holder's aperture is outlined in saturated
// green, and finding that green box tells us which part of the macro image
// the whole-slide image covers.
package macro

import (
	"bytes"
	"fmt"
	"image"
	"os"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/tiff"
)

// LoadMacro - decodes a PNG/JPEG/TIFF macro image from disk
func LoadMacro(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeMacro(data)
}

func DecodeMacro(data []byte) (image.Image, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode macro image: %v", err)
	}

	switch format {
	case "png", "jpeg", "tiff":
	default:
		return nil, fmt.Errorf("macro image format %v not supported", format)
	}

	return img, nil
}
