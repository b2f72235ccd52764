package telemetry

import "go.opentelemetry.io/otel/attribute"

func instanceAttribute(id string) attribute.KeyValue {
	return attribute.String("service.instance.id", id)
}

func componentAttribute(name string) attribute.KeyValue {
	return attribute.String("service.component", name)
}
