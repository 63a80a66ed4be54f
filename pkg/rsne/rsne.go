// Package rsne parses, encodes and negotiates RSN elements
// (IEEE Std 802.11-2016, 9.4.2.25).
package rsne

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	ElementID = 48
	version   = 1
	suiteLen  = 4
	pmkidLen  = 16
)

var ieeeOUI = [3]byte{0x00, 0x0f, 0xac}

var (
	ErrInvalidElement    = errors.New("invalid RSN element")
	ErrNegotiationFailed = errors.New("RSN negotiation failed")
	ErrUnsupportedAKM    = errors.New("unsupported AKM suite")
)

// Suite is a cipher or AKM suite selector.
type Suite struct {
	OUI  [3]byte
	Type uint8
}

func ieeeSuite(t uint8) Suite { return Suite{OUI: ieeeOUI, Type: t} }

var (
	CipherTKIP       = ieeeSuite(2)
	CipherCCMP128    = ieeeSuite(4)
	CipherBIPCMAC128 = ieeeSuite(6)
	CipherGCMP128    = ieeeSuite(8)
	CipherGCMP256    = ieeeSuite(9)

	AKM8021X       = ieeeSuite(1)
	AKMPSK         = ieeeSuite(2)
	AKMFT8021X     = ieeeSuite(3)
	AKMFTPSK       = ieeeSuite(4)
	AKM8021XSHA256 = ieeeSuite(5)
	AKMPSKSHA256   = ieeeSuite(6)
	AKMSAE         = ieeeSuite(8)
)

func (s Suite) String() string {
	return fmt.Sprintf("%02x-%02x-%02x:%d", s.OUI[0], s.OUI[1], s.OUI[2], s.Type)
}

// Capabilities is the RSN Capabilities field.
type Capabilities uint16

const (
	CapPreauth    Capabilities = 1 << 0
	CapNoPairwise Capabilities = 1 << 1
	CapMFPR       Capabilities = 1 << 6
	CapMFPC       Capabilities = 1 << 7
)

func (c Capabilities) MFPRequired() bool { return c&CapMFPR != 0 }
func (c Capabilities) MFPCapable() bool  { return c&CapMFPC != 0 }

// Rsne is a decoded RSN element. Nil optional fields were absent on the wire;
// trailing fields are only encoded when a later field requires them.
type Rsne struct {
	Version         uint16
	GroupDataCipher *Suite
	PairwiseCiphers []Suite
	AKMs            []Suite
	Capabilities    *Capabilities
	PMKIDs          [][pmkidLen]byte
	GroupMgmtCipher *Suite
}

// New returns an element with the given suites and capabilities set.
func New(group Suite, pairwise []Suite, akms []Suite, caps Capabilities) *Rsne {
	return &Rsne{
		Version:         version,
		GroupDataCipher: &group,
		PairwiseCiphers: pairwise,
		AKMs:            akms,
		Capabilities:    &caps,
	}
}

// Clone returns a deep copy of e.
func (e *Rsne) Clone() *Rsne {
	if e == nil {
		return nil
	}
	c := &Rsne{
		Version:         e.Version,
		PairwiseCiphers: append([]Suite(nil), e.PairwiseCiphers...),
		AKMs:            append([]Suite(nil), e.AKMs...),
		PMKIDs:          append([][pmkidLen]byte(nil), e.PMKIDs...),
	}
	if e.GroupDataCipher != nil {
		g := *e.GroupDataCipher
		c.GroupDataCipher = &g
	}
	if e.Capabilities != nil {
		caps := *e.Capabilities
		c.Capabilities = &caps
	}
	if e.GroupMgmtCipher != nil {
		m := *e.GroupMgmtCipher
		c.GroupMgmtCipher = &m
	}
	return c
}

type reader struct {
	data []byte
	err  error
}

func (r *reader) remaining() int { return len(r.data) }

func (r *reader) next(n int) []byte {
	if r.err != nil {
		return nil
	}
	if len(r.data) < n {
		r.err = fmt.Errorf("%w: need %d bytes, %d remain", ErrInvalidElement, n, len(r.data))
		return nil
	}
	b := r.data[:n]
	r.data = r.data[n:]
	return b
}

func (r *reader) suite() Suite {
	b := r.next(suiteLen)
	if b == nil {
		return Suite{}
	}
	return Suite{OUI: [3]byte{b[0], b[1], b[2]}, Type: b[3]}
}

func (r *reader) suites() []Suite {
	b := r.next(2)
	if b == nil {
		return nil
	}
	n := int(binary.LittleEndian.Uint16(b))
	out := make([]Suite, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		out = append(out, r.suite())
	}
	return out
}

// Parse decodes a complete RSN element, header included.
func Parse(b []byte) (*Rsne, error) {
	if len(b) < 2 || b[0] != ElementID {
		return nil, fmt.Errorf("%w: missing RSN element header", ErrInvalidElement)
	}
	if int(b[1]) != len(b)-2 {
		return nil, fmt.Errorf("%w: length field %d, body %d bytes", ErrInvalidElement, b[1], len(b)-2)
	}
	r := &reader{data: b[2:]}
	vb := r.next(2)
	if vb == nil {
		return nil, r.err
	}
	e := &Rsne{Version: binary.LittleEndian.Uint16(vb)}
	if e.Version != version {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidElement, e.Version)
	}

	if r.remaining() > 0 {
		s := r.suite()
		e.GroupDataCipher = &s
	}
	if r.remaining() > 0 {
		e.PairwiseCiphers = r.suites()
	}
	if r.remaining() > 0 {
		e.AKMs = r.suites()
	}
	if r.remaining() > 0 {
		if cb := r.next(2); cb != nil {
			caps := Capabilities(binary.LittleEndian.Uint16(cb))
			e.Capabilities = &caps
		}
	}
	if r.remaining() > 0 {
		if nb := r.next(2); nb != nil {
			n := int(binary.LittleEndian.Uint16(nb))
			for i := 0; i < n && r.err == nil; i++ {
				if id := r.next(pmkidLen); id != nil {
					var pmkid [pmkidLen]byte
					copy(pmkid[:], id)
					e.PMKIDs = append(e.PMKIDs, pmkid)
				}
			}
		}
	}
	if r.remaining() > 0 {
		s := r.suite()
		e.GroupMgmtCipher = &s
	}
	if r.err != nil {
		return nil, r.err
	}
	return e, nil
}

// Bytes encodes the element, header included.
func (e *Rsne) Bytes() []byte {
	var body bytes.Buffer
	binary.Write(&body, binary.LittleEndian, e.Version)

	writeSuite := func(s Suite) {
		body.Write(s.OUI[:])
		body.WriteByte(s.Type)
	}
	writeSuites := func(ss []Suite) {
		binary.Write(&body, binary.LittleEndian, uint16(len(ss)))
		for _, s := range ss {
			writeSuite(s)
		}
	}

	hasMgmt := e.GroupMgmtCipher != nil
	hasPMKIDs := len(e.PMKIDs) > 0 || hasMgmt
	hasCaps := e.Capabilities != nil || hasPMKIDs
	hasAKMs := len(e.AKMs) > 0 || hasCaps
	hasPairwise := len(e.PairwiseCiphers) > 0 || hasAKMs
	hasGroup := e.GroupDataCipher != nil || hasPairwise

	if hasGroup {
		group := CipherCCMP128
		if e.GroupDataCipher != nil {
			group = *e.GroupDataCipher
		}
		writeSuite(group)
	}
	if hasPairwise {
		writeSuites(e.PairwiseCiphers)
	}
	if hasAKMs {
		writeSuites(e.AKMs)
	}
	if hasCaps {
		var caps Capabilities
		if e.Capabilities != nil {
			caps = *e.Capabilities
		}
		binary.Write(&body, binary.LittleEndian, uint16(caps))
	}
	if hasPMKIDs {
		binary.Write(&body, binary.LittleEndian, uint16(len(e.PMKIDs)))
		for _, id := range e.PMKIDs {
			body.Write(id[:])
		}
	}
	if hasMgmt {
		writeSuite(*e.GroupMgmtCipher)
	}

	out := make([]byte, 0, 2+body.Len())
	out = append(out, ElementID, byte(body.Len()))
	return append(out, body.Bytes()...)
}

func (e *Rsne) groupCipher() Suite {
	if e.GroupDataCipher != nil {
		return *e.GroupDataCipher
	}
	return CipherCCMP128
}

func (e *Rsne) pairwiseCiphers() []Suite {
	if e.PairwiseCiphers != nil {
		return e.PairwiseCiphers
	}
	return []Suite{CipherCCMP128}
}

func (e *Rsne) akms() []Suite {
	if e.AKMs != nil {
		return e.AKMs
	}
	return []Suite{AKM8021X}
}

func (e *Rsne) caps() Capabilities {
	if e.Capabilities != nil {
		return *e.Capabilities
	}
	return 0
}
