package training

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// ErrInvalidDataset means data.yaml is missing or does not describe a usable
// detection dataset.
var ErrInvalidDataset = errors.New("training: invalid dataset")

const DatasetFile = "data.yaml"

type Dataset struct {
	Path  string     `yaml:"-"`
	Train string     `yaml:"train"`
	Val   string     `yaml:"val"`
	Test  string     `yaml:"test,omitempty"`
	NC    int        `yaml:"nc"`
	Names ClassNames `yaml:"names"`
}

// ClassNames accepts both the list form and the index map form of names.
type ClassNames []string

func (c *ClassNames) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var names []string
		if err := node.Decode(&names); err != nil {
			return err
		}
		*c = names
		return nil

	case yaml.MappingNode:
		var byIndex map[int]string
		if err := node.Decode(&byIndex); err != nil {
			return err
		}
		ids := make([]int, 0, len(byIndex))
		for id := range byIndex {
			ids = append(ids, id)
		}
		sort.Ints(ids)

		names := make([]string, len(ids))
		for i, id := range ids {
			if id != i {
				return fmt.Errorf("class ids are not contiguous at %d", id)
			}
			names[i] = byIndex[id]
		}
		*c = names
		return nil
	}
	return fmt.Errorf("names must be a list or a map, got %v", node.Tag)
}

// LoadDataset parses and validates the dataset description at path.
func LoadDataset(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDataset, err)
	}

	ds := &Dataset{Path: path}
	if err := yaml.Unmarshal(data, ds); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidDataset, path, err)
	}
	if err := ds.validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidDataset, path, err)
	}
	return ds, nil
}

func (ds *Dataset) validate() error {
	switch {
	case ds.Train == "":
		return errors.New("no train split")
	case ds.Val == "":
		return errors.New("no val split")
	case len(ds.Names) == 0:
		return errors.New("no class names")
	case ds.NC != 0 && ds.NC != len(ds.Names):
		return fmt.Errorf("nc is %d but %d names are listed", ds.NC, len(ds.Names))
	}
	return nil
}
