package propagation_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestPropagation(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Propagation Suite")
}
