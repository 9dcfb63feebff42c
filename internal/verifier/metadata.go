package verifier

import (
	"encoding/binary"
	"fmt"
	"strings"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// MetadataProgramID is the Metaplex token metadata program
var MetadataProgramID = solana.MustPublicKeyFromBase58("metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s")

// metadataKeyV1 is the account discriminator of a MetadataV1 record
const metadataKeyV1 = 4

// Creator is one entry of the metadata creators list
type Creator struct {
	Address  solana.PublicKey
	Verified bool
	Share    uint8
}

// Metadata is the fixed prefix of a Metaplex metadata account, up to and including is_mutable.
// Fields after is_mutable are versioned and not decoded.
type Metadata struct {
	Key                  uint8
	UpdateAuthority      solana.PublicKey
	Mint                 solana.PublicKey
	Name                 string
	Symbol               string
	URI                  string
	SellerFeeBasisPoints uint16
	Creators             []Creator
	PrimarySaleHappened  bool
	IsMutable            bool
}

// MetadataAddress derives the metadata account of mint
func MetadataAddress(mint solana.PublicKey) (solana.PublicKey, error) {
	address, _, err := solana.FindProgramAddress(
		[][]byte{[]byte("metadata"), MetadataProgramID[:], mint[:]},
		MetadataProgramID,
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive metadata address: %w", err)
	}
	return address, nil
}

// UpdateAuthority reads the update authority at bytes 1..33. The all-zero key means revoked and
// is returned as nil.
func UpdateAuthority(data []byte) (*solana.PublicKey, error) {
	if len(data) < 33 {
		return nil, fmt.Errorf("metadata too short: %d bytes", len(data))
	}
	authority := solana.PublicKeyFromBytes(data[1:33])
	if authority.IsZero() {
		return nil, nil
	}
	return &authority, nil
}

// DecodeMetadata parses the borsh encoded metadata record
func DecodeMetadata(data []byte) (*Metadata, error) {
	dec := bin.NewBorshDecoder(data)
	md := &Metadata{}

	var err error
	if md.Key, err = dec.ReadUint8(); err != nil {
		return nil, fmt.Errorf("failed to read key: %w", err)
	}
	if md.Key != metadataKeyV1 {
		return nil, fmt.Errorf("unexpected metadata key %d", md.Key)
	}
	if md.UpdateAuthority, err = readPublicKey(dec); err != nil {
		return nil, fmt.Errorf("failed to read update authority: %w", err)
	}
	if md.Mint, err = readPublicKey(dec); err != nil {
		return nil, fmt.Errorf("failed to read mint: %w", err)
	}
	if md.Name, err = readString(dec); err != nil {
		return nil, fmt.Errorf("failed to read name: %w", err)
	}
	if md.Symbol, err = readString(dec); err != nil {
		return nil, fmt.Errorf("failed to read symbol: %w", err)
	}
	if md.URI, err = readString(dec); err != nil {
		return nil, fmt.Errorf("failed to read uri: %w", err)
	}
	if md.SellerFeeBasisPoints, err = dec.ReadUint16(binary.LittleEndian); err != nil {
		return nil, fmt.Errorf("failed to read seller fee: %w", err)
	}

	hasCreators, err := dec.ReadBool()
	if err != nil {
		return nil, fmt.Errorf("failed to read creators option: %w", err)
	}
	if hasCreators {
		count, err := dec.ReadUint32(binary.LittleEndian)
		if err != nil {
			return nil, fmt.Errorf("failed to read creators length: %w", err)
		}
		// address, verified, share
		if uint64(count)*34 > uint64(dec.Remaining()) {
			return nil, fmt.Errorf("creators list of %d overruns account data", count)
		}
		md.Creators = make([]Creator, count)
		for i := range md.Creators {
			c := &md.Creators[i]
			if c.Address, err = readPublicKey(dec); err != nil {
				return nil, err
			}
			if c.Verified, err = dec.ReadBool(); err != nil {
				return nil, err
			}
			if c.Share, err = dec.ReadUint8(); err != nil {
				return nil, err
			}
		}
	}

	if md.PrimarySaleHappened, err = dec.ReadBool(); err != nil {
		return nil, fmt.Errorf("failed to read primary sale flag: %w", err)
	}
	if md.IsMutable, err = dec.ReadBool(); err != nil {
		return nil, fmt.Errorf("failed to read is_mutable: %w", err)
	}

	return md, nil
}

func readPublicKey(dec *bin.Decoder) (solana.PublicKey, error) {
	b, err := dec.ReadNBytes(solana.PublicKeyLength)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return solana.PublicKeyFromBytes(b), nil
}

// readString reads a u32 length prefixed string. Metaplex pads names with NUL bytes.
func readString(dec *bin.Decoder) (string, error) {
	n, err := dec.ReadUint32(binary.LittleEndian)
	if err != nil {
		return "", err
	}
	if int(n) > dec.Remaining() {
		return "", fmt.Errorf("string of %d bytes overruns account data", n)
	}
	b, err := dec.ReadNBytes(int(n))
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(b), "\x00"), nil
}
