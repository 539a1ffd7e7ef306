package main

const (
	defaultConfigFile    = "shape-studio.yaml"
	defaultProgramFile   = "code.go"
	defaultOutputDir     = "output"
	defaultAPIKeyFile    = "api_key.txt"
	defaultMaxIterations = 10
)

// starterProgram is written by the init command as the first program to
// refine
const starterProgram = `package main

import "csg"

func create_object() *csg.Shape {
	cube := csg.Cube(0.4, 0.4, 0.4).Translate(0.4, 0, 0)
	sphere := csg.Sphere(0.15).Translate(-0.3, 0, 0)
	return cube.Union(sphere)
}
`

// starterConfig is written by the init command
const starterConfig = `# shape-studio configuration. Command-line flags override these values.
program: code.go
output: output
max_iterations: 10

target:
  # directory holding pos_x.jpeg ... neg_z.jpeg
  views: ""
  # or a reference program / OBJ mesh, rendered when views is empty
  program: ""
  mesh: ""

model:
  provider: anthropic
  name: claude-sonnet-4-5
  max_tokens: 4000
  temperature: 0.7
  api_key_file: api_key.txt

render:
  size: 512
  quality: 90

executor:
  mesh_cells: 64
  timeout: 60s

prompt:
  views: [pos_x, neg_x, pos_y, neg_y, pos_z, neg_z]
`
