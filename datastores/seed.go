package datastores

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var seedYAML []byte

type seedData struct {
	Contacts     []Contact     `yaml:"contacts"`
	Appointments []Appointment `yaml:"appointments"`
}

// Seed returns a fresh copy of the dataset used when nothing was saved yet.
func Seed() ([]Contact, []Appointment) {
	var data seedData
	if err := yaml.Unmarshal(seedYAML, &data); err != nil {
		panic(fmt.Sprintf("datastores: embedded seed is invalid: %v", err))
	}
	return data.Contacts, data.Appointments
}
