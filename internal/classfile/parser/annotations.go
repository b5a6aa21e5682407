package parser

import "fmt"

/*
*	RuntimeVisibleAnnotations_attribute {
*		u2         num_annotations;
*		annotation annotations[num_annotations];
*	}
*
*	annotation {
*		u2 type_index;
*		u2 num_element_value_pairs;
*		{   u2            element_name_index;
*			element_value value;
*		} element_value_pairs[num_element_value_pairs];
*	}
*
*	Only the top-level annotation type descriptors are kept.
 */
func (p *classParser) parseAnnotations(body []byte) ([]string, error) {
	reader := newBytesReader(body)
	count, err := reader.ReadU2()
	if err != nil {
		return nil, fmt.Errorf("failed to read annotation count: %w", err)
	}

	types := make([]string, 0, count)
	for range count {
		desc, err := p.readAnnotation(reader)
		if err != nil {
			return nil, err
		}
		types = append(types, desc)
	}
	return types, nil
}

func (p *classParser) readAnnotation(reader *BinaryReader) (string, error) {
	typeIndex, err := reader.ReadU2()
	if err != nil {
		return "", fmt.Errorf("failed to read annotation type: %w", err)
	}
	desc, err := p.cp.Utf8(typeIndex)
	if err != nil {
		return "", fmt.Errorf("failed to resolve annotation type: %w", err)
	}

	pairs, err := reader.ReadU2()
	if err != nil {
		return "", fmt.Errorf("failed to read annotation %s: %w", desc, err)
	}
	for range pairs {
		if err := reader.Skip(2); err != nil {
			return "", fmt.Errorf("failed to read annotation %s: %w", desc, err)
		}
		if err := p.skipElementValue(reader); err != nil {
			return "", fmt.Errorf("failed to read annotation %s: %w", desc, err)
		}
	}
	return desc, nil
}

/*
*	element_value {
*		u1 tag;
*		union {
*			u2 const_value_index;                          B C D F I J S Z s
*			{ u2 type_name_index; u2 const_name_index; }   e
*			u2 class_info_index;                           c
*			annotation annotation_value;                   @
*			{ u2 num_values; element_value values[]; }     [
*		} value;
*	}
 */
func (p *classParser) skipElementValue(reader *BinaryReader) error {
	tag, err := reader.ReadU1()
	if err != nil {
		return err
	}

	switch tag {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z', 's', 'c':
		return reader.Skip(2)
	case 'e':
		return reader.Skip(4)
	case '@':
		_, err := p.readAnnotation(reader)
		return err
	case '[':
		count, err := reader.ReadU2()
		if err != nil {
			return err
		}
		for range count {
			if err := p.skipElementValue(reader); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown element value tag %q", tag)
	}
}
