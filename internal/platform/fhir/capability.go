package fhir

import (
	"time"

	"github.com/ngsanogo/keneyapp/internal/core"
)

// CapabilityStatement is the FHIR metadata resource describing what this
// server supports.
type CapabilityStatement struct {
	ResourceType   string            `json:"resourceType"`
	Status         string            `json:"status"`
	Date           string            `json:"date"`
	Kind           string            `json:"kind"`
	FHIRVersion    string            `json:"fhirVersion"`
	Format         []string          `json:"format"`
	Implementation *CSImplementation `json:"implementation,omitempty"`
	Rest           []CSRest          `json:"rest"`
}

type CSImplementation struct {
	Description string `json:"description"`
	URL         string `json:"url,omitempty"`
}

type CSRest struct {
	Mode     string       `json:"mode"`
	Resource []CSResource `json:"resource"`
}

type CSResource struct {
	Type        string          `json:"type"`
	Interaction []CSInteraction `json:"interaction"`
	SearchParam []CSSearchParam `json:"searchParam,omitempty"`
	Versioning  string          `json:"versioning,omitempty"`
}

type CSInteraction struct {
	Code string `json:"code"`
}

type CSSearchParam struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// NewCapabilityStatement builds the server capability document for every
// supported canonical kind plus the Subscription endpoint. Interactions
// are read, create, and search-type.
func NewCapabilityStatement(baseURL string) *CapabilityStatement {
	interactions := []CSInteraction{
		{Code: "read"},
		{Code: "create"},
		{Code: "search-type"},
	}

	resources := make([]CSResource, 0, len(core.Kinds())+1)
	for _, kind := range core.Kinds() {
		resources = append(resources, CSResource{
			Type:        kind.WireType(),
			Interaction: interactions,
			Versioning:  "versioned",
		})
	}
	resources = append(resources, CSResource{
		Type:        "Subscription",
		Interaction: interactions,
		SearchParam: []CSSearchParam{
			{Name: "status", Type: "token"},
			{Name: "criteria", Type: "string"},
		},
	})

	return &CapabilityStatement{
		ResourceType: "CapabilityStatement",
		Status:       "active",
		Date:         time.Now().UTC().Format("2006-01-02"),
		Kind:         "instance",
		FHIRVersion:  "4.0.1",
		Format:       []string{"json"},
		Implementation: &CSImplementation{
			Description: "KeneyApp FHIR R4 Interoperability Server",
			URL:         baseURL,
		},
		Rest: []CSRest{{Mode: "server", Resource: resources}},
	}
}
