package ledger

// Only the methods the core calls are declared.

const traceABI = `[
  {"type":"function","name":"registerPanel","stateMutability":"nonpayable",
   "inputs":[{"name":"panelId","type":"string"},{"name":"brand","type":"string"},{"name":"model","type":"string"},{"name":"location","type":"string"}],
   "outputs":[]},
  {"type":"function","name":"isRegistered","stateMutability":"view",
   "inputs":[{"name":"panelId","type":"string"}],
   "outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"updateStatus","stateMutability":"nonpayable",
   "inputs":[{"name":"panelId","type":"string"},{"name":"status","type":"uint8"},{"name":"location","type":"string"},{"name":"note","type":"string"}],
   "outputs":[]},
  {"type":"function","name":"getHistory","stateMutability":"view",
   "inputs":[{"name":"panelId","type":"string"}],
   "outputs":[{"name":"","type":"tuple[]","components":[
     {"name":"status","type":"uint8"},
     {"name":"location","type":"string"},
     {"name":"note","type":"string"},
     {"name":"actor","type":"address"},
     {"name":"timestamp","type":"uint256"}]}]}
]`

const collectibleABI = `[
  {"type":"function","name":"mint","stateMutability":"nonpayable",
   "inputs":[{"name":"to","type":"address"},{"name":"panelId","type":"string"},{"name":"uri","type":"string"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"safeTransferFrom","stateMutability":"nonpayable",
   "inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"tokenId","type":"uint256"}],
   "outputs":[]},
  {"type":"function","name":"ownerOf","stateMutability":"view",
   "inputs":[{"name":"tokenId","type":"uint256"}],
   "outputs":[{"name":"","type":"address"}]},
  {"type":"event","name":"Transfer","anonymous":false,
   "inputs":[{"indexed":true,"name":"from","type":"address"},{"indexed":true,"name":"to","type":"address"},{"indexed":true,"name":"tokenId","type":"uint256"}]}
]`

// mintBatch takes the batch key as data and reverts when the key was already
// used; batchMinted reads the same set.
const materialABI = `[
  {"type":"function","name":"mintBatch","stateMutability":"nonpayable",
   "inputs":[{"name":"to","type":"address"},{"name":"ids","type":"uint256[]"},{"name":"amounts","type":"uint256[]"},{"name":"data","type":"bytes"}],
   "outputs":[]},
  {"type":"function","name":"batchMinted","stateMutability":"view",
   "inputs":[{"name":"batch","type":"bytes32"}],
   "outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"safeTransferFrom","stateMutability":"nonpayable",
   "inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"id","type":"uint256"},{"name":"amount","type":"uint256"},{"name":"data","type":"bytes"}],
   "outputs":[]}
]`
