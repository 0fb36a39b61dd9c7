package dicomutil

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// ExtractDicomObject fills the model's fields from the dataset, driven
// by the `dicom` struct tags. Fields whose element is absent or not
// representable as a string are left at their zero value, so sparse
// source metadata never fails extraction.
func ExtractDicomObject(dataset dicom.Dataset, object interface{}) {
	reflection := reflect.TypeOf(object).Elem()

	for i := 0; i < reflection.NumField(); i++ {
		field := reflection.Field(i)
		tagInfo, err := tag.FindByName(field.Tag.Get("dicom"))
		if err != nil {
			continue
		}
		element, _ := dataset.FindElementByTag(tagInfo.Tag)
		if element == nil {
			continue
		}

		stringValue, err := ElementString(element)
		if err != nil {
			continue
		}
		reflect.ValueOf(object).Elem().FieldByIndex(field.Index).SetString(stringValue)
	}
}

// ElementString renders a scalar element value as a string. Multi-valued
// elements are joined with backslash, matching DICOM value multiplicity
// encoding.
func ElementString(element *dicom.Element) (string, error) {
	value := element.Value.GetValue()

	switch v := value.(type) {
	case []string:
		return strings.TrimSpace(strings.Join(v, "\\")), nil
	case []int:
		parts := make([]string, len(v))
		for i, n := range v {
			parts[i] = fmt.Sprintf("%d", n)
		}
		return strings.Join(parts, "\\"), nil
	case string:
		return strings.TrimSpace(v), nil
	}

	return "", fmt.Errorf("dicomutil: element %s has no string representation", element.Tag)
}
