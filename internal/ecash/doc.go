// Package ecash implements Chaumian e-cash with double-spender tracing.
//
// Overview:
//   - A Bank signs coins blindly, so it cannot link a coin it signed to the coin later spent
//   - A Spender's coin commits to K pairs of identity shares whose halves XOR to the owner's identity string
//   - A Merchant verifies the bank signature and opens one random half of every pair
//   - The Detector compares two RIS vectors of the same coin and recovers the identity of a double-spender
//   - The Ledger is the clearing authority merchants deposit RIS vectors into
//
// Security Model:
//   - RSA full-domain-hash blind signatures (package blindrsa)
//   - Commitments use SHA-256 by default, BLAKE2b-256 or BW6-761 MiMC on request
//   - All randomness flows through a Source; production code uses crypto/rand
//   - One spend reveals one half per pair and nothing about the owner
//   - Two spends disagree on some pair with probability 1-2^-K and expose the owner
//   - Two identical RIS vectors expose a merchant replaying its own deposit
//
// Usage:
//   - NewBank, NewSpender, NewMerchant, NewLedger build independent parties
//   - Spender.Withdraw runs the blind issuance; Spender.Spend opens a presentation
//   - Merchant.Accept returns a RIS; Ledger.Deposit returns verdicts
//
// References:
//   - D. Chaum, A. Fiat, M. Naor: Untraceable Electronic Cash (CRYPTO '88)
package ecash
