package sim

// An Endpoint models one side of the link as three delay coefficients, all in
// seconds. The zero value is a free, instantaneous endpoint. Endpoints are
// immutable values; to change a Simulator's endpoints, swap the whole pair
// with ChangeEndpoints.
type Endpoint struct {
	TransmissionDelayPerQubit float64 // seconds to put one qubit on the fiber
	ProcessingDelayPerQubit   float64 // seconds to prepare or measure one qubit
	FixedDelay                float64 // constant per-operation overhead in seconds
}

// SendDelay returns the total time to send qubits qubits. The fixed overhead
// is paid once per send, regardless of count; SendDelay(0) is FixedDelay.
func (e Endpoint) SendDelay(qubits int) float64 {
	t := float64(qubits)
	return e.FixedDelay + t*e.TransmissionDelayPerQubit + t*e.ProcessingDelayPerQubit
}

// ReceiveDelay returns the total time to receive qubits qubits. Unlike
// SendDelay, the fixed overhead is paid per qubit: the sender batches its
// setup cost, the receiver handles arrivals one at a time. The asymmetry is
// intentional. ReceiveDelay(0) is 0.
func (e Endpoint) ReceiveDelay(qubits int) float64 {
	return float64(qubits) * (e.FixedDelay + e.TransmissionDelayPerQubit + e.ProcessingDelayPerQubit)
}

// An EndpointPair is the order-significant sender/receiver pair of a link.
type EndpointPair struct {
	Sender   Endpoint
	Receiver Endpoint
}
